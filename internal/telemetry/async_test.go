package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []*Event
	done   chan struct{}
}

func newCaptureEmitter() *captureEmitter {
	return &captureEmitter{done: make(chan struct{}, 16)}
}

func (e *captureEmitter) Emit(ctx context.Context, event *Event) error {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
	e.done <- struct{}{}
	return nil
}

func TestEmitAsync_DeliversEvent(t *testing.T) {
	emitter := newCaptureEmitter()
	event := &Event{
		UserID:    "user-1",
		SessionID: "sess-1",
		EventType: EventSessionCreated,
		Source:    "session_service",
		CreatedAt: time.Now().UTC(),
	}

	EmitAsync(emitter, context.Background(), event)

	select {
	case <-emitter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not complete")
	}

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if len(emitter.events) != 1 {
		t.Fatalf("events = %d, want 1", len(emitter.events))
	}
	if emitter.events[0].EventType != EventSessionCreated {
		t.Errorf("EventType = %q, want %q", emitter.events[0].EventType, EventSessionCreated)
	}
}

func TestEmitAsync_NilEmitterAndEvent(t *testing.T) {
	// Must not panic or start goroutines.
	EmitAsync(nil, context.Background(), &Event{EventType: EventSessionExpired})
	EmitAsync(newCaptureEmitter(), context.Background(), nil)
}

func TestEmitAsync_CallerCancellationDoesNotAbortEmit(t *testing.T) {
	emitter := newCaptureEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(emitter, ctx, &Event{EventType: EventSessionExtended})

	select {
	case <-emitter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit should complete despite cancelled caller context")
	}
}
