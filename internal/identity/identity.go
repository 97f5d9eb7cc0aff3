// Package identity implements the identity provider contract: email and
// password accounts, OAuth sign-in completion, and bearer session tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"studyspend/internal/core"
	"studyspend/internal/store"
	syncerr "studyspend/internal/sync"
)

// MinPasswordLen matches the product's registration rule.
const MinPasswordLen = 6

const tokenIssuer = "studyspend"

// Profile is what the rest of the app sees of a signed-in user.
type Profile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserStore is the slice of the document store the identity service needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, displayName, passwordHash string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUser(ctx context.Context, id string) (store.User, error)
	UpsertOAuthUser(ctx context.Context, provider, subject, email, displayName, photoURL string) (store.User, error)
	UpdateProfile(ctx context.Context, id, displayName, photoURL string) error
}

type Service struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(users UserStore, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{users: users, secret: secret, tokenTTL: tokenTTL}
}

// Register creates a password account. Field problems come back as a
// single ValidationError; a taken email maps to the email-in-use code.
func (s *Service) Register(ctx context.Context, email, password, confirm, displayName string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	displayName = strings.TrimSpace(displayName)

	var fields []string
	if email == "" || !strings.Contains(email, "@") {
		fields = append(fields, "email")
	}
	if displayName == "" {
		fields = append(fields, "displayName")
	}
	if len(password) < MinPasswordLen {
		fields = append(fields, "password")
	}
	if password != confirm {
		fields = append(fields, "confirmPassword")
	}
	if len(fields) > 0 {
		return Profile{}, core.NewValidationError(fields...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, email, displayName, string(hash))
	if errors.Is(err, store.ErrEmailTaken) {
		return Profile{}, syncerr.NewSyncError(syncerr.CodeEmailInUse, err)
	}
	if err != nil {
		return Profile{}, syncerr.NewSyncError(syncerr.CodeUnavailable, err)
	}

	slog.InfoContext(ctx, "Account registered", "user_id", u.ID)
	return profileOf(u), nil
}

// SignIn verifies email+password. Wrong email and wrong password are
// indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (Profile, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Profile{}, "", core.NewValidationError("email", "password")
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Profile{}, "", syncerr.NewSyncError(syncerr.CodeInvalidCredentials, err)
	}
	if err != nil {
		return Profile{}, "", syncerr.NewSyncError(syncerr.CodeUnavailable, err)
	}
	if u.PasswordHash == "" {
		// OAuth-only account; no password to check against.
		return Profile{}, "", syncerr.NewSyncError(syncerr.CodeInvalidCredentials, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Profile{}, "", syncerr.NewSyncError(syncerr.CodeInvalidCredentials, err)
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return Profile{}, "", err
	}
	return profileOf(u), token, nil
}

// OAuthCompletion is the verified result of the browser popup flow.
// Cancelled marks a popup the user closed, which is suppressed upstream.
type OAuthCompletion struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
	Cancelled   bool
}

// CompleteOAuth upserts the account for a verified provider identity and
// issues a session token.
func (s *Service) CompleteOAuth(ctx context.Context, c OAuthCompletion) (Profile, string, error) {
	if c.Cancelled {
		return Profile{}, "", syncerr.NewSyncError(syncerr.CodePopupClosed, nil)
	}

	var fields []string
	if strings.TrimSpace(c.Provider) == "" {
		fields = append(fields, "provider")
	}
	if strings.TrimSpace(c.Subject) == "" {
		fields = append(fields, "subject")
	}
	if strings.TrimSpace(c.Email) == "" {
		fields = append(fields, "email")
	}
	if len(fields) > 0 {
		return Profile{}, "", core.NewValidationError(fields...)
	}

	u, err := s.users.UpsertOAuthUser(ctx, c.Provider, c.Subject,
		strings.ToLower(strings.TrimSpace(c.Email)), c.DisplayName, c.PhotoURL)
	if errors.Is(err, store.ErrEmailTaken) {
		return Profile{}, "", syncerr.NewSyncError(syncerr.CodeEmailInUse, err)
	}
	if err != nil {
		return Profile{}, "", syncerr.NewSyncError(syncerr.CodeUnavailable, err)
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return Profile{}, "", err
	}

	slog.InfoContext(ctx, "OAuth sign-in completed", "user_id", u.ID, "provider", c.Provider)
	return profileOf(u), token, nil
}

// Lookup resolves a profile by user ID.
func (s *Service) Lookup(ctx context.Context, uid string) (Profile, error) {
	u, err := s.users.GetUser(ctx, uid)
	if errors.Is(err, store.ErrNotFound) {
		return Profile{}, syncerr.NewSyncError(syncerr.CodeUserNotFound, err)
	}
	if err != nil {
		return Profile{}, syncerr.NewSyncError(syncerr.CodeUnavailable, err)
	}
	return profileOf(u), nil
}

// UpdateProfile changes display name and photo URL.
func (s *Service) UpdateProfile(ctx context.Context, uid, displayName, photoURL string) (Profile, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return Profile{}, core.NewValidationError("displayName")
	}
	if err := s.users.UpdateProfile(ctx, uid, displayName, photoURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, syncerr.NewSyncError(syncerr.CodeUserNotFound, err)
		}
		return Profile{}, syncerr.NewSyncError(syncerr.CodeUnavailable, err)
	}
	return s.Lookup(ctx, uid)
}

func (s *Service) issueToken(uid string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks a bearer token and returns the user ID it names.
// Expired or malformed tokens map to the session-expired code.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", syncerr.NewSyncError(syncerr.CodeSessionExpired, err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", syncerr.NewSyncError(syncerr.CodeSessionExpired, nil)
	}
	return claims.Subject, nil
}

func profileOf(u store.User) Profile {
	return Profile{
		UID:         u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   u.CreatedAt,
	}
}
