package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := New(10, nil)
	defer bus.Close()

	routed := bus.Subscribe(TypeTaskRouted)
	all := bus.Subscribe()

	bus.Publish(NewTaskCreatedEvent("task-1", "t", "bugfix"))
	bus.Publish(NewTaskRoutedEvent("task-1", "solo", "coder", "default", nil))

	select {
	case ev := <-routed:
		if ev.EventType() != TypeTaskRouted {
			t.Fatalf("filtered subscriber got %s", ev.EventType())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for routed event")
	}

	got := 0
	for got < 2 {
		select {
		case <-all:
			got++
		case <-time.After(time.Second):
			t.Fatalf("all-types subscriber received %d of 2 events", got)
		}
	}
}

func TestBus_NonBlockingPublishDrops(t *testing.T) {
	bus := New(1, nil)
	defer bus.Close()

	ch := bus.Subscribe(TypeTaskUpdated)

	// Buffer size 1: second publish must drop, not block.
	done := make(chan struct{})
	go func() {
		bus.Publish(NewTaskUpdatedEvent("task-1", "pending"))
		bus.Publish(NewTaskUpdatedEvent("task-1", "in_progress"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber buffer")
	}

	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", bus.Dropped())
	}
	<-ch
}

func TestBus_HandlerSupervision(t *testing.T) {
	bus := New(10, nil)

	var handled int64
	var once sync.Once
	panicked := make(chan struct{})
	bus.Handle(func(ev Event) {
		if ev.TaskID() == "task-bad" {
			once.Do(func() { close(panicked) })
			panic("boom")
		}
		atomic.AddInt64(&handled, 1)
	}, TypeTaskUpdated)

	bus.Publish(NewTaskUpdatedEvent("task-bad", "pending"))
	<-panicked
	bus.Publish(NewTaskUpdatedEvent("task-ok", "pending"))

	deadline := time.After(time.Second)
	for atomic.LoadInt64(&handled) == 0 {
		select {
		case <-deadline:
			t.Fatalf("handler did not survive a panic")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	bus.Close()
}

func TestBus_CloseClosesSubscribers(t *testing.T) {
	bus := New(10, nil)
	ch := bus.Subscribe()

	bus.Close()

	if _, ok := <-ch; ok {
		t.Fatalf("expected subscriber channel closed after bus close")
	}

	// Publish after close is a no-op, not a panic.
	bus.Publish(NewTaskUpdatedEvent("task-1", "pending"))
}
