package bus

import (
	"testing"
	"time"
)

func TestChangeEventJSON(t *testing.T) {
	ev := NewChangeEvent("owner-1", "2024-03", 7, KindExpenseCreated)

	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := ChangeEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.OwnerID != "owner-1" || got.PeriodKey != "2024-03" || got.Seq != 7 || got.Kind != KindExpenseCreated {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Timestamp.IsZero() || time.Since(got.Timestamp) > time.Minute {
		t.Fatalf("timestamp not set sensibly: %v", got.Timestamp)
	}
}

func TestChangeEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := ChangeEventFromJSON([]byte("not json")); err == nil {
		t.Fatalf("expected error for invalid body")
	}
}
