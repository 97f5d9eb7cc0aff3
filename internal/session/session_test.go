package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyspend/internal/core"
	"studyspend/internal/identity"
	"studyspend/internal/store"
	synchub "studyspend/internal/sync"
)

type fakeSource struct {
	records map[string][]core.Expense
	seqs    map[string]uint64
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		records: make(map[string][]core.Expense),
		seqs:    make(map[string]uint64),
	}
}

func (f *fakeSource) put(owner, key string, records ...core.Expense) {
	k := owner + "/" + key
	f.records[k] = records
	f.seqs[k]++
}

func (f *fakeSource) Snapshot(_ context.Context, owner, key string) ([]core.Expense, uint64, error) {
	k := owner + "/" + key
	return f.records[k], f.seqs[k], nil
}

type fakeSettings struct {
	periods map[string]core.Period
	fail    bool
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{periods: make(map[string]core.Period)}
}

func (f *fakeSettings) GetSettings(_ context.Context, owner string) (core.Period, error) {
	if f.fail {
		return core.Period{}, errors.New("settings down")
	}
	p, ok := f.periods[owner]
	if !ok {
		return core.Period{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeSettings) SaveSettings(_ context.Context, owner string, p core.Period) error {
	if f.fail {
		return errors.New("settings down")
	}
	f.periods[owner] = p
	return nil
}

func expense(id string, cents int64, d core.Date) core.Expense {
	return core.Expense{
		ID:          id,
		Description: id,
		Amount:      core.Money{Cents: cents},
		Category:    core.CategoryFood,
		Date:        d,
	}
}

func testProfile(uid string) identity.Profile {
	return identity.Profile{UID: uid, Email: uid + "@example.com", DisplayName: uid}
}

func newTestManager(src *fakeSource, settings *fakeSettings) *Manager {
	return NewManager(synchub.NewHub(src), settings, time.Hour)
}

func TestStatusString(t *testing.T) {
	cases := []struct {
		status Status
		want   string
	}{
		{StatusUnknown, "unknown"},
		{StatusSignedOut, "signed_out"},
		{StatusSignedIn, "signed_in"},
	}
	for i, tc := range cases {
		if got := tc.status.String(); got != tc.want {
			t.Fatalf("case %d expected %q, got %q", i, tc.want, got)
		}
	}
	// The zero value is the unresolved client-side state.
	var zero Status
	if zero != StatusUnknown {
		t.Fatalf("zero value must be unknown, got %v", zero)
	}
}

func TestSignInCreatesDefaultPeriod(t *testing.T) {
	settings := newFakeSettings()
	m := newTestManager(newFakeSource(), settings)

	sess, err := m.SignIn(context.Background(), testProfile("u1"))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.Status() != StatusSignedIn {
		t.Fatalf("expected signed in, got %v", sess.Status())
	}

	p := sess.Period()
	if p.DurationDays != core.DefaultDurationDays || p.BudgetCents != core.DefaultBudgetCents {
		t.Fatalf("expected default period, got %+v", p)
	}
	if _, ok := settings.periods["u1"]; !ok {
		t.Fatalf("default period must be persisted")
	}
}

func TestSignInLoadsSavedPeriodAndSnapshot(t *testing.T) {
	start := core.NewDate(2024, 3, 1)
	settings := newFakeSettings()
	settings.periods["u1"] = core.Period{StartDate: start, DurationDays: 14, BudgetCents: 50000}

	src := newFakeSource()
	src.put("u1", "2024-03", expense("a", 1200, start))
	m := newTestManager(src, settings)

	sess, err := m.SignIn(context.Background(), testProfile("u1"))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if sess.Period().DurationDays != 14 {
		t.Fatalf("saved period not loaded: %+v", sess.Period())
	}
	if sess.Ledger().Len() != 1 {
		t.Fatalf("initial snapshot not applied, got %d records", sess.Ledger().Len())
	}
}

func TestSignOutTeardown(t *testing.T) {
	src := newFakeSource()
	hub := synchub.NewHub(src)
	m := NewManager(hub, newFakeSettings(), time.Hour)
	ctx := context.Background()

	sess, err := m.SignIn(ctx, testProfile("u1"))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	key := sess.Period().StartDate.PeriodKey()
	if hub.SubscriberCount("u1", key) != 1 {
		t.Fatalf("expected live subscription")
	}

	m.SignOut("u1")

	if sess.Status() != StatusSignedOut {
		t.Fatalf("expected signed out, got %v", sess.Status())
	}
	if sess.Ledger().Len() != 0 {
		t.Fatalf("ledger must be cleared on sign out")
	}
	if hub.SubscriberCount("u1", key) != 0 {
		t.Fatalf("subscription must be detached on sign out")
	}
	if _, ok := m.Get("u1"); ok {
		t.Fatalf("session must be gone after sign out")
	}

	// Idempotent.
	m.SignOut("u1")
}

func TestRestartPeriodSwitchesBucket(t *testing.T) {
	march := core.NewDate(2024, 3, 1)
	april := core.NewDate(2024, 4, 2)

	settings := newFakeSettings()
	settings.periods["u1"] = core.Period{StartDate: march, DurationDays: 30, BudgetCents: 100000}

	src := newFakeSource()
	src.put("u1", "2024-03", expense("march", 500, march))
	src.put("u1", "2024-04", expense("april", 700, april))
	hub := synchub.NewHub(src)
	m := NewManager(hub, settings, time.Hour)
	ctx := context.Background()

	sess, err := m.SignIn(ctx, testProfile("u1"))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	p, err := m.RestartPeriod(ctx, "u1", april)
	if err != nil {
		t.Fatalf("restart period: %v", err)
	}
	if !p.StartDate.SameDay(april) {
		t.Fatalf("period not restarted: %+v", p)
	}
	if settings.periods["u1"].StartDate != april {
		t.Fatalf("restart must be persisted")
	}

	got := sess.Ledger().All()
	if len(got) != 1 || got[0].ID != "april" {
		t.Fatalf("ledger must hold the new bucket only: %+v", got)
	}
	if hub.SubscriberCount("u1", "2024-03") != 0 {
		t.Fatalf("old bucket subscription must be gone")
	}
	if hub.SubscriberCount("u1", "2024-04") != 1 {
		t.Fatalf("new bucket subscription must be live")
	}

	// A late notify on the old bucket must not touch the new ledger.
	src.put("u1", "2024-03", expense("march-late", 900, march))
	if err := hub.Notify(ctx, "u1", "2024-03"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	got = sess.Ledger().All()
	if len(got) != 1 || got[0].ID != "april" {
		t.Fatalf("stale bucket contaminated the ledger: %+v", got)
	}
}

func TestUpdatePeriodValidates(t *testing.T) {
	m := newTestManager(newFakeSource(), newFakeSettings())
	ctx := context.Background()

	if _, err := m.SignIn(ctx, testProfile("u1")); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	if _, err := m.UpdatePeriod(ctx, "u1", 45, 50000); !core.IsValidation(err) {
		t.Fatalf("expected ValidationError for 45 days, got %v", err)
	}

	p, err := m.UpdatePeriod(ctx, "u1", 14, 50000)
	if err != nil {
		t.Fatalf("update period: %v", err)
	}
	if p.DurationDays != 14 || p.BudgetCents != 50000 {
		t.Fatalf("unexpected period %+v", p)
	}
}

func TestUpdatePeriodWithoutSession(t *testing.T) {
	m := newTestManager(newFakeSource(), newFakeSettings())
	if _, err := m.UpdatePeriod(context.Background(), "ghost", 14, 50000); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestReapIdleSignsOut(t *testing.T) {
	src := newFakeSource()
	m := NewManager(synchub.NewHub(src), newFakeSettings(), 10*time.Minute)
	ctx := context.Background()

	active, err := m.SignIn(ctx, testProfile("active"))
	if err != nil {
		t.Fatalf("sign in active: %v", err)
	}
	idle, err := m.SignIn(ctx, testProfile("idle"))
	if err != nil {
		t.Fatalf("sign in idle: %v", err)
	}

	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	m.reapIdle(time.Now())

	if m.Count() != 1 {
		t.Fatalf("expected 1 live session, got %d", m.Count())
	}
	if idle.Status() != StatusSignedOut {
		t.Fatalf("idle session must be signed out")
	}
	if active.Status() != StatusSignedIn {
		t.Fatalf("active session must survive the sweep")
	}
}

func TestSignInReplacesExistingSession(t *testing.T) {
	src := newFakeSource()
	hub := synchub.NewHub(src)
	m := NewManager(hub, newFakeSettings(), time.Hour)
	ctx := context.Background()

	first, err := m.SignIn(ctx, testProfile("u1"))
	if err != nil {
		t.Fatalf("first sign in: %v", err)
	}
	second, err := m.SignIn(ctx, testProfile("u1"))
	if err != nil {
		t.Fatalf("second sign in: %v", err)
	}

	if first.Status() != StatusSignedOut {
		t.Fatalf("first session must be torn down")
	}
	key := second.Period().StartDate.PeriodKey()
	if hub.SubscriberCount("u1", key) != 1 {
		t.Fatalf("expected exactly one live subscription, got %d", hub.SubscriberCount("u1", key))
	}
}
