// Package store is the SQLite document store behind the sync gateway:
// users, per-user settings, and expense records bucketed by period key.
// Every write to a period bucket bumps that bucket's snapshot sequence,
// which is what keeps ledger replacements ordered.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"studyspend/internal/core"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrBadReference = errors.New("unknown owner")
)

// User is the stored identity record. PasswordHash is empty for accounts
// created through an OAuth provider.
type User struct {
	ID              string
	Email           string
	DisplayName     string
	PhotoURL        string
	PasswordHash    string
	Provider        string
	ProviderSubject string
	CreatedAt       time.Time
}

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateUser inserts a password-based account. The ID is assigned here.
func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash string) (User, error) {
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Provider:     "password",
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, provider, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.Provider, u.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// UpsertOAuthUser finds or creates the account for a verified provider
// identity, refreshing name and photo on every sign-in.
func (s *Store) UpsertOAuthUser(ctx context.Context, provider, subject, email, displayName, photoURL string) (User, error) {
	existing, err := s.getUserBy(ctx, "provider = ? AND provider_subject = ?", provider, subject)
	if err == nil {
		_, err = s.db.ExecContext(ctx,
			`UPDATE users SET display_name = ?, photo_url = ? WHERE id = ?`,
			displayName, photoURL, existing.ID)
		if err != nil {
			return User{}, fmt.Errorf("refresh oauth profile: %w", err)
		}
		existing.DisplayName = displayName
		existing.PhotoURL = photoURL
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	u := User{
		ID:              uuid.NewString(),
		Email:           email,
		DisplayName:     displayName,
		PhotoURL:        photoURL,
		Provider:        provider,
		ProviderSubject: subject,
		CreatedAt:       time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, photo_url, provider, provider_subject, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PhotoURL, u.Provider, u.ProviderSubject, u.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert oauth user: %w", err)
	}

	slog.InfoContext(ctx, "OAuth user created", "user_id", u.ID, "provider", provider)
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUserBy(ctx, "email = ?", email)
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.getUserBy(ctx, "id = ?", id)
}

func (s *Store) getUserBy(ctx context.Context, where string, args ...any) (User, error) {
	var (
		u         User
		createdMs int64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, photo_url, password_hash, provider, provider_subject, created_at_ms
		 FROM users WHERE `+where, args...)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.PasswordHash,
		&u.Provider, &u.ProviderSubject, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	return u, nil
}

// UpdateProfile sets display name and photo URL for an account.
func (s *Store) UpdateProfile(ctx context.Context, id, displayName, photoURL string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, photo_url = ? WHERE id = ?`,
		displayName, photoURL, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSettings loads the owner's active period. ErrNotFound means the
// account has no settings yet; callers create the default period then.
func (s *Store) GetSettings(ctx context.Context, ownerID string) (core.Period, error) {
	var (
		startStr string
		p        core.Period
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT period_start, duration_days, budget_cents FROM user_settings WHERE owner_id = ?`,
		ownerID)
	err := row.Scan(&startStr, &p.DurationDays, &p.BudgetCents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Period{}, ErrNotFound
	}
	if err != nil {
		return core.Period{}, fmt.Errorf("select settings: %w", err)
	}
	p.StartDate, err = core.ParseDate(startStr)
	if err != nil {
		return core.Period{}, fmt.Errorf("parse period start %q: %w", startStr, err)
	}
	return p, nil
}

// SaveSettings stores the owner's active period, replacing any previous one.
func (s *Store) SaveSettings(ctx context.Context, ownerID string, p core.Period) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (owner_id, period_start, duration_days, budget_cents, updated_at_ms)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET
		   period_start = excluded.period_start,
		   duration_days = excluded.duration_days,
		   budget_cents = excluded.budget_cents,
		   updated_at_ms = excluded.updated_at_ms`,
		ownerID, p.StartDate.String(), p.DurationDays, p.BudgetCents, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// CreateExpense persists a validated draft into the owner's period bucket,
// assigns the record ID, and bumps the bucket's snapshot sequence. Insert
// and sequence bump commit together.
func (s *Store) CreateExpense(ctx context.Context, ownerID, periodKey string, d core.Draft) (core.Expense, uint64, error) {
	rec := core.Expense{
		ID:          uuid.NewString(),
		Description: d.Description,
		Amount:      d.Amount,
		Category:    d.Category,
		Date:        d.Date,
		Notes:       d.Notes,
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, period_key, description, amount_cents, category, spend_date, notes, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, ownerID, periodKey, rec.Description, rec.Amount.Cents,
		string(rec.Category), rec.Date.String(), rec.Notes, rec.CreatedAt.UnixMilli())
	if err != nil {
		return core.Expense{}, 0, fmt.Errorf("insert expense: %w", err)
	}

	seq, err := bumpSeq(ctx, tx, ownerID, periodKey)
	if err != nil {
		return core.Expense{}, 0, err
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, 0, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", rec.ID,
		"owner_id", ownerID,
		"period_key", periodKey,
		"amount_cents", rec.Amount.Cents,
		"seq", seq)
	return rec, seq, nil
}

// DeleteAllExpenses empties a period bucket in one batch and bumps the
// snapshot sequence so subscribers observe the emptied set.
func (s *Store) DeleteAllExpenses(ctx context.Context, ownerID, periodKey string) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM expenses WHERE owner_id = ? AND period_key = ?`,
		ownerID, periodKey)
	if err != nil {
		return 0, fmt.Errorf("delete expenses: %w", err)
	}

	seq, err := bumpSeq(ctx, tx, ownerID, periodKey)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete: %w", err)
	}

	deleted, _ := res.RowsAffected()
	slog.InfoContext(ctx, "Period expenses deleted",
		"owner_id", ownerID,
		"period_key", periodKey,
		"deleted", deleted,
		"seq", seq)
	return seq, nil
}

// Snapshot reads the full record set of a period bucket, newest first,
// together with the bucket's current sequence.
func (s *Store) Snapshot(ctx context.Context, ownerID, periodKey string) ([]core.Expense, uint64, error) {
	var seq uint64
	row := s.db.QueryRowContext(ctx,
		`SELECT seq FROM period_seq WHERE owner_id = ? AND period_key = ?`,
		ownerID, periodKey)
	if err := row.Scan(&seq); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("select period seq: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, amount_cents, category, spend_date, notes, created_at_ms
		 FROM expenses
		 WHERE owner_id = ? AND period_key = ?
		 ORDER BY created_at_ms DESC, id`,
		ownerID, periodKey)
	if err != nil {
		return nil, 0, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var records []core.Expense
	for rows.Next() {
		var (
			rec       core.Expense
			category  string
			dateStr   string
			createdMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Description, &rec.Amount.Cents,
			&category, &dateStr, &rec.Notes, &createdMs); err != nil {
			return nil, 0, fmt.Errorf("scan expense: %w", err)
		}
		rec.Category = core.Category(category)
		rec.Date, err = core.ParseDate(dateStr)
		if err != nil {
			return nil, 0, fmt.Errorf("parse spend date %q: %w", dateStr, err)
		}
		rec.CreatedAt = time.UnixMilli(createdMs).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate expenses: %w", err)
	}

	return records, seq, nil
}

func bumpSeq(ctx context.Context, tx *sql.Tx, ownerID, periodKey string) (uint64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO period_seq (owner_id, period_key, seq) VALUES (?, ?, 1)
		 ON CONFLICT(owner_id, period_key) DO UPDATE SET seq = seq + 1`,
		ownerID, periodKey)
	if err != nil {
		return 0, fmt.Errorf("bump period seq: %w", err)
	}

	var seq uint64
	row := tx.QueryRowContext(ctx,
		`SELECT seq FROM period_seq WHERE owner_id = ? AND period_key = ?`,
		ownerID, periodKey)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read period seq: %w", err)
	}
	return seq, nil
}

func isUniqueViolation(err error) bool {
	// modernc sqlite reports constraint failures in the error text;
	// there is no exported error code type to match against.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
