package mirror

import (
	"context"
	"fmt"
	"testing"
	"time"

	"studyspend/internal/bus"
	"studyspend/internal/core"
)

type fakeSource struct {
	records []core.Expense
	seq     uint64
	fail    bool
}

func (f *fakeSource) Snapshot(context.Context, string, string) ([]core.Expense, uint64, error) {
	if f.fail {
		return nil, 0, fmt.Errorf("source down")
	}
	return f.records, f.seq, nil
}

type fakeAppender struct {
	rows []core.Expense
	fail bool
}

func (f *fakeAppender) AppendRow(_ context.Context, _ string, e core.Expense) error {
	if f.fail {
		return fmt.Errorf("sheet down")
	}
	f.rows = append(f.rows, e)
	return nil
}

func record(id string) core.Expense {
	return core.Expense{
		ID:          id,
		Description: id,
		Amount:      core.Money{Cents: 1500},
		Category:    core.CategoryFood,
		Date:        core.NewDate(2024, 3, 1),
	}
}

func event(seq uint64, kind string) *bus.ChangeEvent {
	return &bus.ChangeEvent{
		OwnerID:   "u1",
		PeriodKey: "2024-03",
		Seq:       seq,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func TestHandleChangeMirrorsNewRecord(t *testing.T) {
	src := &fakeSource{records: []core.Expense{record("a")}, seq: 1}
	app := &fakeAppender{}
	m := New(src, app)

	if err := m.HandleChange(context.Background(), event(1, bus.KindExpenseCreated)); err != nil {
		t.Fatalf("handle change: %v", err)
	}
	if len(app.rows) != 1 || app.rows[0].ID != "a" {
		t.Fatalf("expected record a mirrored, got %+v", app.rows)
	}
}

func TestHandleChangeIgnoresRedelivery(t *testing.T) {
	src := &fakeSource{records: []core.Expense{record("a")}, seq: 1}
	app := &fakeAppender{}
	m := New(src, app)
	ctx := context.Background()

	ev := event(1, bus.KindExpenseCreated)
	if err := m.HandleChange(ctx, ev); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := m.HandleChange(ctx, ev); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(app.rows) != 1 {
		t.Fatalf("redelivery must not duplicate rows, got %d", len(app.rows))
	}
}

func TestHandleChangeClearEventWritesNoRows(t *testing.T) {
	src := &fakeSource{seq: 2}
	app := &fakeAppender{}
	m := New(src, app)

	if err := m.HandleChange(context.Background(), event(2, bus.KindPeriodCleared)); err != nil {
		t.Fatalf("handle change: %v", err)
	}
	if len(app.rows) != 0 {
		t.Fatalf("clear events must not append rows")
	}
}

func TestHandleChangeErrorsRequeue(t *testing.T) {
	src := &fakeSource{fail: true}
	app := &fakeAppender{}
	m := New(src, app)
	ctx := context.Background()

	if err := m.HandleChange(ctx, event(1, bus.KindExpenseCreated)); err == nil {
		t.Fatalf("source failure must surface so the broker redelivers")
	}

	// Appender failure must not advance the mirrored sequence.
	src.fail = false
	src.records = []core.Expense{record("a")}
	src.seq = 1
	app.fail = true
	if err := m.HandleChange(ctx, event(1, bus.KindExpenseCreated)); err == nil {
		t.Fatalf("appender failure must surface")
	}
	app.fail = false
	if err := m.HandleChange(ctx, event(1, bus.KindExpenseCreated)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(app.rows) != 1 {
		t.Fatalf("expected exactly one mirrored row after retry, got %d", len(app.rows))
	}
}
