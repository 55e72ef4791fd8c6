package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(2)

	sink.Emit(context.Background(), Event{EventType: "login", UserID: "u1", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "login" || ev.UserID != "u1" || !ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatal("event was not delivered")
	}
}

func TestChannelSinkRespectsContext(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), Event{EventType: "first"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, Event{EventType: "second"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit on a full channel did not honor cancellation")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{EventType: "logout", UserID: "u2"})
	sink.Emit(context.Background(), Event{EventType: "refresh", Success: true})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.EventType != "logout" || first.UserID != "u2" {
		t.Fatalf("unexpected first event %+v", first)
	}
}

func TestNoOpSink(t *testing.T) {
	var sink NoOpSink
	sink.Emit(context.Background(), Event{EventType: "login"})
}
