// Package session owns the lifecycle of signed-in users: each session
// holds the user's period, a live ledger fed by the sync hub, and an
// activity clock that an idle reaper checks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"studyspend/internal/core"
	"studyspend/internal/identity"
	"studyspend/internal/ledger"
	"studyspend/internal/store"
	synchub "studyspend/internal/sync"
)

// DefaultIdleTimeout signs out sessions with no activity for this long.
const DefaultIdleTimeout = 30 * time.Minute

type Status int

const (
	// StatusUnknown is the zero value: a client that has not yet resolved
	// its state via GET /v1/auth/session. The server only ever reports
	// SignedOut or SignedIn.
	StatusUnknown Status = iota
	StatusSignedOut
	StatusSignedIn
)

func (s Status) String() string {
	switch s {
	case StatusSignedOut:
		return "signed_out"
	case StatusSignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// SettingsStore persists the per-user period configuration.
type SettingsStore interface {
	GetSettings(ctx context.Context, ownerID string) (core.Period, error)
	SaveSettings(ctx context.Context, ownerID string, p core.Period) error
}

// Session is one signed-in user's live state. All mutation goes through
// the Manager; reads are safe from any goroutine.
type Session struct {
	uid string

	mu           sync.Mutex
	profile      identity.Profile
	period       core.Period
	led          *ledger.Ledger
	sub          *synchub.Subscription
	status       Status
	lastActivity time.Time
}

func (s *Session) UID() string { return s.uid }

func (s *Session) Profile() identity.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Session) SetProfile(p identity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

func (s *Session) Period() core.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

func (s *Session) Ledger() *ledger.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch records activity, pushing the idle deadline forward.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// Manager tracks sessions by user ID and reaps the idle ones.
type Manager struct {
	hub         *synchub.Hub
	settings    SettingsStore
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(hub *synchub.Hub, settings SettingsStore, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		hub:         hub,
		settings:    settings,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
	}
}

// SignIn creates (or replaces) the session for a user: loads the saved
// period, falling back to a fresh default, and attaches the ledger to the
// sync hub so the initial snapshot lands before SignIn returns.
func (m *Manager) SignIn(ctx context.Context, profile identity.Profile) (*Session, error) {
	period, err := m.settings.GetSettings(ctx, profile.UID)
	if errors.Is(err, store.ErrNotFound) {
		period = core.DefaultPeriod(core.DateOf(time.Now()))
		if err := m.settings.SaveSettings(ctx, profile.UID, period); err != nil {
			return nil, fmt.Errorf("save default period: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load period: %w", err)
	}

	// A previous session for the same user is torn down first.
	m.SignOut(profile.UID)

	sess := &Session{
		uid:          profile.UID,
		profile:      profile,
		period:       period,
		led:          ledger.New(),
		status:       StatusSignedIn,
		lastActivity: time.Now(),
	}

	sub, err := m.subscribe(ctx, sess, period)
	if err != nil {
		return nil, err
	}
	sess.sub = sub

	m.mu.Lock()
	m.sessions[profile.UID] = sess
	m.mu.Unlock()

	slog.InfoContext(ctx, "Session started",
		"user_id", profile.UID,
		"period_key", period.StartDate.PeriodKey())
	return sess, nil
}

func (m *Manager) subscribe(ctx context.Context, sess *Session, period core.Period) (*synchub.Subscription, error) {
	led := sess.Ledger()
	sub, err := m.hub.Subscribe(ctx, sess.uid, period.StartDate.PeriodKey(),
		func(seq uint64, records []core.Expense) {
			_ = led.ReplaceAll(seq, records)
		})
	if err != nil {
		return nil, fmt.Errorf("attach ledger: %w", err)
	}
	return sub, nil
}

// Get returns the live session for a user, touching its activity clock.
func (m *Manager) Get(uid string) (*Session, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[uid]
	m.mu.Unlock()
	if ok {
		sess.Touch()
	}
	return sess, ok
}

// UpdatePeriod applies new duration and budget to the live period.
func (m *Manager) UpdatePeriod(ctx context.Context, uid string, durationDays int, budgetCents int64) (core.Period, error) {
	sess, ok := m.Get(uid)
	if !ok {
		return core.Period{}, ErrNoSession
	}

	current := sess.Period()
	updated, err := current.Update(durationDays, budgetCents)
	if err != nil {
		return core.Period{}, err
	}
	return updated, m.applyPeriod(ctx, sess, current, updated)
}

// RestartPeriod begins a fresh period at newStart with the same duration
// and budget. When the period key changes, the old subscription is
// detached before the new one attaches, so a stale snapshot can never
// land in the new bucket's ledger.
func (m *Manager) RestartPeriod(ctx context.Context, uid string, newStart core.Date) (core.Period, error) {
	sess, ok := m.Get(uid)
	if !ok {
		return core.Period{}, ErrNoSession
	}

	current := sess.Period()
	restarted := current.Restart(newStart)
	return restarted, m.applyPeriod(ctx, sess, current, restarted)
}

func (m *Manager) applyPeriod(ctx context.Context, sess *Session, old, updated core.Period) error {
	if err := m.settings.SaveSettings(ctx, sess.uid, updated); err != nil {
		return fmt.Errorf("save period: %w", err)
	}

	oldKey := old.StartDate.PeriodKey()
	newKey := updated.StartDate.PeriodKey()

	sess.mu.Lock()
	sess.period = updated
	oldSub := sess.sub
	sess.mu.Unlock()

	if oldKey == newKey {
		return nil
	}

	// Unsubscribe first, then clear, then resubscribe: the initial
	// snapshot of the new bucket arrives synchronously.
	if oldSub != nil {
		oldSub.Unsubscribe()
	}
	sess.Ledger().RemoveAll()

	sub, err := m.subscribe(ctx, sess, updated)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.sub = sub
	sess.mu.Unlock()

	slog.InfoContext(ctx, "Period switched",
		"user_id", sess.uid,
		"from", oldKey,
		"to", newKey)
	return nil
}

// SignOut tears the session down: detach the subscription, clear the
// ledger, then mark signed out. Safe to call for unknown users.
func (m *Manager) SignOut(uid string) {
	m.mu.Lock()
	sess, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	sub := sess.sub
	sess.sub = nil
	sess.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	sess.Ledger().RemoveAll()

	sess.mu.Lock()
	sess.status = StatusSignedOut
	sess.mu.Unlock()

	slog.Info("Session ended", "user_id", uid)
}

// ErrNoSession means the user has no live session; callers treat it as
// an expired session.
var ErrNoSession = errors.New("no live session")

// Count reports live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps for idle sessions until the context ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapIdle(time.Now())
		}
	}
}

func (m *Manager) reapIdle(now time.Time) {
	m.mu.Lock()
	var idle []string
	for uid, sess := range m.sessions {
		if now.Sub(sess.LastActivity()) > m.idleTimeout {
			idle = append(idle, uid)
		}
	}
	m.mu.Unlock()

	for _, uid := range idle {
		slog.Info("Session idle timeout", "user_id", uid, "timeout", m.idleTimeout)
		m.SignOut(uid)
	}
}
