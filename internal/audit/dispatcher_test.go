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

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "login", PrincipalID: string(rune('a' + i))})
	}
	d.Close()

	events := sink.snapshot()
	if len(events) != 5 {
		t.Fatalf("delivered %d events, want 5", len(events))
	}
	for i, event := range events {
		if event.PrincipalID != string(rune('a'+i)) {
			t.Fatalf("event %d out of order: %+v", i, event)
		}
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &collectSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	// All methods are nil-safe.
	d.Emit(context.Background(), Event{})
	if d.Dropped() != 0 {
		t.Fatal("dropped on nil dispatcher")
	}
	d.Close()
}

// With DropIfFull, a saturated buffer sheds events instead of blocking
// the caller.
func TestDispatcherDropsUnderBackpressure(t *testing.T) {
	block := make(chan struct{})
	slow := &blockingSink{release: block}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, slow)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink")
	}
	close(block)
	d.Close()
}

type blockingSink struct {
	release <-chan struct{}
	once    sync.Once
}

func (s *blockingSink) Emit(context.Context, Event) {
	s.once.Do(func() { <-s.release })
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	sink := &collectSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "login"})
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("delivered %d events after close", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		EventType: "tenant_switch",
		Email:     "jane@acme.example",
		Success:   true,
		Metadata:  map[string]string{"target_tenant": "t-beta"},
	})
	sink.Emit(context.Background(), Event{EventType: "login", Success: false})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.EventType != "tenant_switch" || !first.Success || first.Metadata["target_tenant"] != "t-beta" {
		t.Fatalf("first = %+v", first)
	}
}
