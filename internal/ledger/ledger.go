// Package ledger holds the authoritative in-memory record set for one
// user's active budget period. All mutations go through it; storage is
// reconciled by the sync adapter delivering full snapshots.
package ledger

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"studyspend/internal/core"
)

// ErrStaleSnapshot is returned when a snapshot arrives with a sequence
// number not greater than the last applied one. The snapshot is discarded
// and the ledger state is untouched.
var ErrStaleSnapshot = errors.New("stale snapshot")

type State int

const (
	StateEmpty State = iota
	StatePopulated
)

func (s State) String() string {
	if s == StatePopulated {
		return "populated"
	}
	return "empty"
}

type Ledger struct {
	mu      sync.Mutex
	records []core.Expense
	lastSeq uint64
}

func New() *Ledger {
	return &Ledger{}
}

// ReplaceAll atomically swaps the entire record set with a snapshot from
// the sync adapter. Snapshots must carry a monotonically increasing
// sequence; an out-of-order snapshot is ignored with ErrStaleSnapshot.
// Structural shape is trusted here, the adapter is the trust boundary.
func (l *Ledger) ReplaceAll(seq uint64, records []core.Expense) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if seq <= l.lastSeq {
		slog.Warn("Discarding out-of-order snapshot",
			"snapshot_seq", seq,
			"applied_seq", l.lastSeq,
			"records", len(records))
		return ErrStaleSnapshot
	}

	l.records = make([]core.Expense, len(records))
	copy(l.records, records)
	l.lastSeq = seq
	return nil
}

// Add validates a draft and returns the pending record to submit to the
// sync adapter. The ledger itself is not mutated: the record joins the
// set once the store confirms it, via Append or the next snapshot.
func (l *Ledger) Add(d core.Draft) (core.Expense, error) {
	if err := d.Validate(); err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		Description: d.Description,
		Amount:      d.Amount,
		Category:    d.Category,
		Date:        d.Date,
		Notes:       d.Notes,
	}, nil
}

// Append inserts a persisted record (carrying its store-assigned ID).
// Used when the write acknowledgement arrives before the next snapshot.
func (l *Ledger) Append(rec core.Expense) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The snapshot that includes this record may already have landed.
	for _, existing := range l.records {
		if existing.ID != "" && existing.ID == rec.ID {
			return
		}
	}
	l.records = append(l.records, rec)
}

// RemoveAll empties the ledger and resets the sequence guard: clearing
// detaches the ledger from its bucket, and the next bucket's sequence
// starts over. Storage deletions are the sync adapter's job; this only
// clears local state.
func (l *Ledger) RemoveAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.lastSeq = 0
}

// All returns a copy of the current records, most-recent-first by
// creation time.
func (l *Ledger) All() []core.Expense {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.Expense, len(l.records))
	copy(out, l.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func (l *Ledger) State() State {
	if l.Len() == 0 {
		return StateEmpty
	}
	return StatePopulated
}

// LastSeq returns the sequence of the last applied snapshot.
func (l *Ledger) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}
