// Package events provides the typed pub/sub bus used by the orchestration
// kernel. Publishing never blocks: a subscriber whose buffer is full loses
// the event (the drop is counted and logged) and publication continues for
// the remaining subscribers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/maestro-ai/maestro/internal/logging"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Timestamp() time.Time
	TaskID() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"timestamp"`
	Task string    `json:"task_id,omitempty"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) TaskID() string       { return e.Task }

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType, taskID string) BaseEvent {
	return BaseEvent{Type: eventType, Time: time.Now(), Task: taskID}
}

// Subscriber holds one subscription's buffer and type filter.
type subscriber struct {
	ch    chan Event
	types map[string]bool // empty means all types
}

// Bus routes events to subscribers keyed by event type.
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
	handlers     sync.WaitGroup
	logger       *logging.Logger
}

// New creates a bus with the given per-subscriber buffer size.
func New(bufferSize int, logger *logging.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{bufferSize: bufferSize, logger: logger.WithComponent("events")}
}

// Subscribe registers for the given event types. With no types it receives
// everything. The returned channel is closed on bus shutdown.
func (b *Bus) Subscribe(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		ch:    make(chan Event, b.bufferSize),
		types: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if sub.ch != ch {
			kept = append(kept, sub)
		} else {
			close(sub.ch)
		}
	}
	b.subscribers = kept
}

// Publish sends an event to all matching subscribers without blocking.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	eventType := event.EventType()
	for _, sub := range b.subscribers {
		if len(sub.types) != 0 && !sub.types[eventType] {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			atomic.AddInt64(&b.droppedCount, 1)
			b.logger.Warn("event dropped, subscriber buffer full",
				"event_type", eventType, "task_id", event.TaskID())
		}
	}
}

// Handle runs fn on its own goroutine for every matching event. The handler
// is supervised: a panic is logged and the handler loop continues with the
// next event. Handlers exit when the bus shuts down.
func (b *Bus) Handle(fn func(Event), types ...string) {
	ch := b.Subscribe(types...)
	b.handlers.Add(1)
	go func() {
		defer b.handlers.Done()
		for ev := range ch {
			b.invoke(fn, ev)
		}
	}()
}

func (b *Bus) invoke(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event_type", ev.EventType(), "panic", r)
		}
	}()
	fn(ev)
}

// Dropped returns the number of events dropped so far.
func (b *Bus) Dropped() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close shuts the bus down: all subscriber channels are closed, handler
// goroutines drain and exit. Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
	b.mu.Unlock()

	b.handlers.Wait()
}
