package memory

import (
	"context"
	"sync"

	"streamlayout/internal/core/domain"
	"streamlayout/internal/core/ports"

	"github.com/benbjohnson/clock"
)

// EventRecorder keeps the last N events of every session in memory. It is
// the publisher used when redis is unavailable and the history behind the
// events endpoint either way.
type EventRecorder struct {
	mu     sync.RWMutex
	size   int
	clock  clock.Clock
	events map[domain.SessionID][]ports.EventRecord
}

// NewEventRecorder creates a recorder keeping the last size events of each
// session.
func NewEventRecorder(size int, clk clock.Clock) *EventRecorder {
	if size < 1 {
		size = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	return &EventRecorder{
		size:   size,
		clock:  clk,
		events: make(map[domain.SessionID][]ports.EventRecord),
	}
}

// Record appends an event, dropping the oldest once the session is full.
func (r *EventRecorder) Record(event ports.EventRecord) {
	if event.Timestamp.IsZero() {
		event.Timestamp = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.events[event.SessionID], event)
	if len(events) > r.size {
		events = append([]ports.EventRecord(nil), events[len(events)-r.size:]...)
	}
	r.events[event.SessionID] = events
}

func (r *EventRecorder) PublishLayout(ctx context.Context, snapshot domain.LayoutSnapshot) error {
	r.Record(ports.LayoutEvent(snapshot))
	return nil
}

func (r *EventRecorder) PublishMessage(ctx context.Context, sessionID domain.SessionID, msg domain.Message) error {
	if event, ok := ports.MessageEvent(sessionID, msg); ok {
		r.Record(event)
	}
	return nil
}

// Recent returns the session's events, oldest first. Unknown sessions have
// an empty history.
func (r *EventRecorder) Recent(ctx context.Context, sessionID domain.SessionID) ([]ports.EventRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[sessionID]
	out := make([]ports.EventRecord, len(events))
	copy(out, events)
	return out, nil
}

// Forget drops the history of a session.
func (r *EventRecorder) Forget(ctx context.Context, sessionID domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.events, sessionID)
	return nil
}

func (r *EventRecorder) Close() error {
	return nil
}
