package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

// blockingSink holds every Emit until released and signals each entry.
type blockingSink struct {
	release chan struct{}
	entered chan struct{}
	mu      sync.Mutex
	seen    []Event
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		release: make(chan struct{}),
		entered: make(chan struct{}, 16),
	}
}

func (s *blockingSink) Emit(ctx context.Context, event Event) {
	s.entered <- struct{}{}
	<-s.release
	s.mu.Lock()
	s.seen = append(s.seen, event)
	s.mu.Unlock()
}

func (s *blockingSink) awaitEntry(t *testing.T) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received an event")
	}
}

func (s *blockingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func TestNewDispatcherDisabledReturnsNil(t *testing.T) {
	if d := NewDispatcher(Config{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatal("disabled dispatcher must be nil")
	}

	// Nil receivers are safe on the emit path.
	var d *Dispatcher
	d.Emit(context.Background(), Event{EventType: "route_rendered"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	for _, et := range []string{"signed_in", "role_resolved", "route_rendered"} {
		d.Emit(context.Background(), Event{EventType: et})
	}

	for _, want := range []string{"signed_in", "role_resolved", "route_rendered"} {
		select {
		case event := <-sink.Events():
			if event.EventType != want {
				t.Fatalf("event = %q, want %q", event.EventType, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event is taken by the worker and blocks in the sink; the second
	// fills the buffer; everything after that drops.
	d.Emit(context.Background(), Event{EventType: "route_denied"})
	sink.awaitEntry(t)
	for i := 0; i < 4; i++ {
		d.Emit(context.Background(), Event{EventType: "route_denied"})
	}

	if got := d.Dropped(); got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherBlockingEmitHonorsContext(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)

	d.Emit(context.Background(), Event{EventType: "a"})
	sink.awaitEntry(t)                                  // worker is stuck in the sink
	d.Emit(context.Background(), Event{EventType: "b"}) // fills the buffer

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking emit ignored context cancellation")
	}
	if d.Dropped() != 0 {
		t.Fatalf("blocking mode must not count drops, got %d", d.Dropped())
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := newBlockingSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "signed_out"})
	}
	close(sink.release)

	d.Close()
	d.Close() // idempotent

	if got := sink.count(); got != 3 {
		t.Fatalf("sink saw %d events after close, want 3", got)
	}

	// Post-close emits are silently ignored.
	d.Emit(context.Background(), Event{EventType: "late"})
	if got := sink.count(); got != 3 {
		t.Fatalf("post-close emit reached the sink")
	}
}

func TestJSONWriterSinkWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		EventType:  "route_denied",
		IdentityID: "u-1",
		Role:       "user",
		Path:       "/admin",
		Success:    false,
		Metadata:   map[string]string{"redirect": "/403"},
	})
	sink.Emit(context.Background(), Event{EventType: "signed_out", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("wrote %d lines, want 2", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not valid JSON: %v", err)
	}
	if first.EventType != "route_denied" || first.IdentityID != "u-1" || first.Metadata["redirect"] != "/403" {
		t.Fatalf("unexpected event %+v", first)
	}
}
