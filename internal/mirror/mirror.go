package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"studyspend/internal/bus"
	"studyspend/internal/core"
)

// SnapshotSource is the read side of the document store.
type SnapshotSource interface {
	Snapshot(ctx context.Context, ownerID, periodKey string) ([]core.Expense, uint64, error)
}

// Mirror consumes change events and appends newly created records to the
// sheet. It tracks the last mirrored sequence per bucket so redelivered
// events never produce duplicate rows.
type Mirror struct {
	source   SnapshotSource
	appender RowAppender

	mu      sync.Mutex
	lastSeq map[string]uint64
}

func New(source SnapshotSource, appender RowAppender) *Mirror {
	return &Mirror{
		source:   source,
		appender: appender,
		lastSeq:  make(map[string]uint64),
	}
}

// HandleChange is the bus consumer entry point. Returning an error makes
// the broker redeliver the event.
func (m *Mirror) HandleChange(ctx context.Context, ev *bus.ChangeEvent) error {
	bucket := ev.OwnerID + "/" + ev.PeriodKey

	m.mu.Lock()
	last := m.lastSeq[bucket]
	m.mu.Unlock()

	if ev.Seq <= last {
		slog.DebugContext(ctx, "Skipping already mirrored event",
			"bucket", bucket, "seq", ev.Seq, "last_seq", last)
		return nil
	}

	if ev.Kind == bus.KindExpenseCreated {
		records, seq, err := m.source.Snapshot(ctx, ev.OwnerID, ev.PeriodKey)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		// Snapshots are newest first; the head is the record this event
		// announced, unless later writes already superseded it.
		if len(records) > 0 && seq >= ev.Seq {
			if err := m.appender.AppendRow(ctx, ev.OwnerID, records[0]); err != nil {
				return fmt.Errorf("mirror record: %w", err)
			}
			slog.InfoContext(ctx, "Record mirrored",
				"owner_id", ev.OwnerID,
				"period_key", ev.PeriodKey,
				"seq", ev.Seq)
		}
	}

	m.mu.Lock()
	if ev.Seq > m.lastSeq[bucket] {
		m.lastSeq[bucket] = ev.Seq
	}
	m.mu.Unlock()
	return nil
}
