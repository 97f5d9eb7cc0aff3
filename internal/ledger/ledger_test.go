package ledger

import (
	"errors"
	"testing"
	"time"

	"studyspend/internal/core"
)

func record(id, desc string, cents int64, createdAt time.Time) core.Expense {
	return core.Expense{
		ID:          id,
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Category:    core.CategoryFood,
		Date:        core.NewDate(2024, 3, 1),
		CreatedAt:   createdAt,
	}
}

func TestReplaceAllOrdering(t *testing.T) {
	l := New()
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	newer := []core.Expense{record("a", "newer", 100, t0)}
	older := []core.Expense{record("b", "older", 200, t0), record("c", "older2", 300, t0)}

	if err := l.ReplaceAll(2, newer); err != nil {
		t.Fatalf("seq 2 expected ok, got %v", err)
	}
	err := l.ReplaceAll(1, older)
	if !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("seq 1 after 2 expected ErrStaleSnapshot, got %v", err)
	}

	got := l.All()
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("ledger must reflect seq 2 only, got %v", got)
	}
	if l.LastSeq() != 2 {
		t.Fatalf("expected lastSeq 2, got %d", l.LastSeq())
	}
}

func TestReplaceAllEqualSeqIgnored(t *testing.T) {
	l := New()
	t0 := time.Now()
	if err := l.ReplaceAll(1, []core.Expense{record("a", "x", 100, t0)}); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := l.ReplaceAll(1, nil); !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("duplicate seq expected ErrStaleSnapshot, got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("state must be untouched, got %d records", l.Len())
	}
}

func TestRemoveAllResetsSequence(t *testing.T) {
	l := New()
	t0 := time.Now()

	if err := l.ReplaceAll(5, []core.Expense{record("a", "x", 100, t0)}); err != nil {
		t.Fatalf("seq 5 expected ok, got %v", err)
	}
	l.RemoveAll()
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d records", l.Len())
	}

	// A cleared ledger belongs to a fresh bucket whose sequence starts
	// over, so a low sequence must apply.
	if err := l.ReplaceAll(1, []core.Expense{record("b", "y", 200, t0)}); err != nil {
		t.Fatalf("seq 1 after RemoveAll expected ok, got %v", err)
	}
	got := l.All()
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("ledger must hold the post-reset snapshot, got %v", got)
	}
	if l.LastSeq() != 1 {
		t.Fatalf("expected lastSeq 1, got %d", l.LastSeq())
	}
}

func TestAddValidatesWithoutMutating(t *testing.T) {
	l := New()

	pending, err := l.Add(core.Draft{
		Description: "Coffee",
		Amount:      core.Money{Cents: 150},
		Category:    core.CategoryFood,
		Date:        core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if pending.ID != "" {
		t.Fatalf("pending record must not carry an ID, got %q", pending.ID)
	}
	if l.Len() != 0 {
		t.Fatalf("Add must not mutate the ledger")
	}

	_, err = l.Add(core.Draft{Description: "", Amount: core.Money{Cents: 0}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !core.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if l.Len() != 0 {
		t.Fatalf("failed Add must not partially mutate")
	}
}

func TestAppendDeduplicatesByID(t *testing.T) {
	l := New()
	t0 := time.Now()
	if err := l.ReplaceAll(1, []core.Expense{record("a", "x", 100, t0)}); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// Write ack arrives after the snapshot that already contains the record.
	l.Append(record("a", "x", 100, t0))
	if l.Len() != 1 {
		t.Fatalf("expected 1 record after duplicate append, got %d", l.Len())
	}

	l.Append(record("b", "y", 200, t0.Add(time.Minute)))
	if l.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", l.Len())
	}
}

func TestAllMostRecentFirst(t *testing.T) {
	l := New()
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	records := []core.Expense{
		record("old", "old", 100, t0),
		record("new", "new", 200, t0.Add(2*time.Hour)),
		record("mid", "mid", 300, t0.Add(time.Hour)),
	}
	if err := l.ReplaceAll(1, records); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	got := l.All()
	wantOrder := []string{"new", "mid", "old"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	l := New()
	if l.State() != StateEmpty {
		t.Fatalf("new ledger must be empty")
	}

	if err := l.ReplaceAll(1, []core.Expense{record("a", "x", 100, time.Now())}); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if l.State() != StatePopulated {
		t.Fatalf("expected populated after snapshot")
	}

	l.RemoveAll()
	if l.State() != StateEmpty {
		t.Fatalf("expected empty after RemoveAll")
	}
}
