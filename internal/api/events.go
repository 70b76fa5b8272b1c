package api

import (
	"sync"
	"time"

	"github.com/maestro-ai/maestro/internal/events"
)

// RecordedEvent is the wire shape of one bus event in the recent tap.
type RecordedEvent struct {
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// EventRing keeps the last N bus events in memory for the
// /api/events/recent endpoint. Writes overwrite the oldest entry.
type EventRing struct {
	mu    sync.Mutex
	buf   []RecordedEvent
	next  int
	count int
}

// NewEventRing creates a ring holding up to capacity events.
func NewEventRing(capacity int) *EventRing {
	if capacity <= 0 {
		capacity = 256
	}
	return &EventRing{buf: make([]RecordedEvent, capacity)}
}

// Observe taps the bus: every event lands in the ring.
func (r *EventRing) Observe(bus *events.Bus) {
	bus.Handle(r.Record)
}

// Record appends one event.
func (r *EventRing) Record(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = RecordedEvent{
		Type:      ev.EventType(),
		TaskID:    ev.TaskID(),
		Timestamp: ev.Timestamp(),
		Payload:   ev,
	}
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Recent returns up to limit events, newest first.
func (r *EventRing) Recent(limit int) []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]RecordedEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
