// Package sync is the adapter between the document store and the
// per-session ledgers: it turns store change events into ordered snapshot
// deliveries, and owns the error taxonomy of the gateway boundary.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"

	"studyspend/internal/bus"
	"studyspend/internal/core"
)

// SnapshotSource is the read side of the document store: the full record
// set of a period bucket plus its monotonic sequence.
type SnapshotSource interface {
	Snapshot(ctx context.Context, ownerID, periodKey string) ([]core.Expense, uint64, error)
}

// DeliverFunc receives a snapshot. Implementations decide whether to
// apply it; the hub only guarantees it hands over what the store returned.
type DeliverFunc func(seq uint64, records []core.Expense)

// Hub fans change notifications out to live subscriptions. One hub serves
// the whole process; sessions subscribe to (owner, period key) buckets and
// must unsubscribe before switching buckets.
type Hub struct {
	source SnapshotSource

	mu     gosync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
}

// Subscription is one live attachment to a period bucket. After
// Unsubscribe returns, no further deliveries happen.
type Subscription struct {
	id      uint64
	key     string
	hub     *Hub
	deliver DeliverFunc

	mu     gosync.Mutex
	closed bool
}

func NewHub(source SnapshotSource) *Hub {
	return &Hub{
		source: source,
		subs:   make(map[string]map[uint64]*Subscription),
	}
}

func bucketKey(ownerID, periodKey string) string {
	return ownerID + "/" + periodKey
}

// Subscribe attaches to a bucket and synchronously delivers the current
// snapshot before returning, so the subscriber starts from known state.
func (h *Hub) Subscribe(ctx context.Context, ownerID, periodKey string, deliver DeliverFunc) (*Subscription, error) {
	records, seq, err := h.source.Snapshot(ctx, ownerID, periodKey)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	sub := &Subscription{
		key:     bucketKey(ownerID, periodKey),
		hub:     h,
		deliver: deliver,
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	if h.subs[sub.key] == nil {
		h.subs[sub.key] = make(map[uint64]*Subscription)
	}
	h.subs[sub.key][sub.id] = sub
	h.mu.Unlock()

	sub.send(seq, records)

	slog.InfoContext(ctx, "Subscription attached",
		"owner_id", ownerID,
		"period_key", periodKey,
		"seq", seq)
	return sub, nil
}

// Notify re-reads the bucket's snapshot and delivers it to every live
// subscription. Called after local writes and for bus events.
func (h *Hub) Notify(ctx context.Context, ownerID, periodKey string) error {
	key := bucketKey(ownerID, periodKey)

	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs[key]))
	for _, sub := range h.subs[key] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	records, seq, err := h.source.Snapshot(ctx, ownerID, periodKey)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	for _, sub := range targets {
		sub.send(seq, records)
	}
	return nil
}

// HandleChange adapts bus events to Notify, for the AMQP consumer loop.
func (h *Hub) HandleChange(ctx context.Context, ev *bus.ChangeEvent) error {
	return h.Notify(ctx, ev.OwnerID, ev.PeriodKey)
}

func (s *Subscription) send(seq uint64, records []core.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.deliver(seq, records)
}

// Unsubscribe detaches from the bucket. It blocks until any in-flight
// delivery finishes; afterwards the deliver func is never called again.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.mu.Lock()
	if subs := s.hub.subs[s.key]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.hub.subs, s.key)
		}
	}
	s.hub.mu.Unlock()
}

// SubscriberCount reports live subscriptions for a bucket.
func (h *Hub) SubscriberCount(ownerID, periodKey string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[bucketKey(ownerID, periodKey)])
}
