// Package http exposes the JSON API: auth, period settings, expenses,
// dashboard, history, and CSV export.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"studyspend/internal/bus"
	"studyspend/internal/core"
	"studyspend/internal/identity"
	"studyspend/internal/session"
	synchub "studyspend/internal/sync"
)

// ExpenseStore is the write side of the document store.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, ownerID, periodKey string, d core.Draft) (core.Expense, uint64, error)
	DeleteAllExpenses(ctx context.Context, ownerID, periodKey string) (uint64, error)
}

// ChangePublisher forwards change events to the broker. Nil is allowed:
// single-process deployments rely on the in-process hub alone.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev *bus.ChangeEvent) error
}

type Server struct {
	http.Server

	identity  *identity.Service
	sessions  *session.Manager
	expenses  ExpenseStore
	hub       *synchub.Hub
	publisher ChangePublisher

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

func NewServer(addr string, ids *identity.Service, sessions *session.Manager, expenses ExpenseStore, hub *synchub.Hub, publisher ChangePublisher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		identity:    ids,
		sessions:    sessions,
		expenses:    expenses,
		hub:         hub,
		publisher:   publisher,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /v1/auth/register", s.with(s.handleRegister))
	mux.HandleFunc("POST /v1/auth/login", s.with(s.handleLogin))
	mux.HandleFunc("POST /v1/auth/oauth", s.with(s.handleOAuth))
	mux.HandleFunc("POST /v1/auth/logout", s.with(s.requireAuth(s.handleLogout)))
	mux.HandleFunc("GET /v1/auth/session", s.with(s.requireAuth(s.handleSession)))
	mux.HandleFunc("PUT /v1/auth/profile", s.with(s.requireAuth(s.handleUpdateProfile)))

	mux.HandleFunc("GET /v1/period", s.with(s.requireAuth(s.handleGetPeriod)))
	mux.HandleFunc("PUT /v1/period", s.with(s.requireAuth(s.handleUpdatePeriod)))
	mux.HandleFunc("POST /v1/period/reset", s.with(s.requireAuth(s.handleResetPeriod)))

	mux.HandleFunc("GET /v1/expenses", s.with(s.requireAuth(s.handleListExpenses)))
	mux.HandleFunc("POST /v1/expenses", s.with(s.requireAuth(s.handleCreateExpense)))
	mux.HandleFunc("GET /v1/dashboard", s.with(s.requireAuth(s.handleDashboard)))
	mux.HandleFunc("GET /v1/history", s.with(s.requireAuth(s.handleHistory)))
	mux.HandleFunc("GET /v1/export.csv", s.with(s.requireAuth(s.handleExportCSV)))

	return s
}

// with adds security headers, rate limiting on writes, a request ID, and
// request logging.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientAddr(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"request_id", requestID,
				"client_ip", clientIP,
				"path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// requireAuth resolves the bearer token to a live session. A valid token
// without a session means the session was reaped or signed out; both
// come back as session-expired.
func (s *Server) requireAuth(next func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
				Code:    "auth/missing-token",
				Message: "Authentication required.",
			}})
			return
		}

		uid, err := s.identity.VerifyToken(token)
		if err != nil {
			writeError(w, err)
			return
		}

		sess, ok := s.sessions.Get(uid)
		if !ok {
			writeError(w, synchub.NewSyncError(synchub.CodeSessionExpired, nil))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, uid)
		next(w, r.WithContext(ctx), sess)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, prefix))
	return token, token != ""
}

func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	return r.RemoteAddr
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the rate limiter's cleanup goroutine and then the
// listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
