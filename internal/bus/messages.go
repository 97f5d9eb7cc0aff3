package bus

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the change exchange.
const (
	KindExpenseCreated = "expense_created"
	KindPeriodCleared  = "period_cleared"
)

// ChangeEvent announces that a period bucket changed. It carries the
// bucket's new snapshot sequence, not the data: consumers re-read the
// snapshot from the store, so a lost or reordered event can never apply
// stale records.
type ChangeEvent struct {
	OwnerID   string    `json:"owner_id"`
	PeriodKey string    `json:"period_key"`
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeEvent(ownerID, periodKey string, seq uint64, kind string) *ChangeEvent {
	return &ChangeEvent{
		OwnerID:   ownerID,
		PeriodKey: periodKey,
		Seq:       seq,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
