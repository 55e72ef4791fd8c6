package goSession

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gymkit/goSession/internal/feed"
)

type recordingSink struct {
	mu     sync.Mutex
	events []feed.Event
}

func (s *recordingSink) Emit(_ context.Context, event feed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDisabledWhenNotEnabled(t *testing.T) {
	d := newEventDispatcher(EventsConfig{Enabled: false}, &recordingSink{})
	if d != nil {
		t.Fatal("disabled events must not start a dispatcher")
	}

	// Nil dispatcher methods are safe no-ops.
	d.emit(context.Background(), feed.Event{EventType: EventLogin})
	d.close()
	if d.droppedCount() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 8}, sink)

	d.emit(context.Background(), feed.Event{EventType: EventLogin})
	d.emit(context.Background(), feed.Event{EventType: EventRefresh})
	d.emit(context.Background(), feed.Event{EventType: EventLogout})
	d.close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(sink.events))
	}
	want := []string{EventLogin, EventRefresh, EventLogout}
	for i, ev := range sink.events {
		if ev.EventType != want[i] {
			t.Fatalf("event %d = %q, want %q", i, ev.EventType, want[i])
		}
		if ev.Timestamp.IsZero() {
			t.Fatalf("event %d missing timestamp", i)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := &blockingSink{release: block}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		d.emit(context.Background(), feed.Event{EventType: EventRefresh})
	}

	waitFor(t, 2*time.Second, func() bool {
		return d.droppedCount() >= 1
	})

	close(block)
	d.close()
}

func TestDispatcherCloseDrains(t *testing.T) {
	sink := &recordingSink{}
	d := newEventDispatcher(EventsConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.emit(context.Background(), feed.Event{EventType: EventRefresh})
	}
	d.close()

	if got := sink.count(); got != 10 {
		t.Fatalf("close must drain queued events, delivered %d of 10", got)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, feed.Event) {
	<-s.release
}
