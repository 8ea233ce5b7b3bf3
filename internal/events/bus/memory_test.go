package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentdeck/agentdeck/internal/common/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      "error",
		Format:     "console",
		OutputPath: "stdout",
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func TestNewMemoryEventBus(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)

	if bus == nil {
		t.Fatal("Expected non-nil bus")
	}
	if !bus.IsConnected() {
		t.Error("Expected bus to be connected")
	}
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	received := make(chan *Event, 1)

	sub, err := bus.Subscribe("test.subject", func(ctx context.Context, event *Event) error {
		received <- event
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	event := NewEvent("test.type", "test-source", map[string]interface{}{"key": "value"})
	if err := bus.Publish(ctx, "test.subject", event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case e := <-received:
		if e.ID != event.ID {
			t.Errorf("Expected event ID %s, got %s", event.ID, e.ID)
		}
		if e.Type != event.Type {
			t.Errorf("Expected event type %s, got %s", event.Type, e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

func TestMemoryEventBus_WildcardMatching(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		subject string
		match   bool
	}{
		{"exact match", "session.message.abc", "session.message.abc", true},
		{"exact mismatch", "session.message.abc", "session.message.def", false},
		{"single token wildcard", "session.message.*", "session.message.abc", true},
		{"single token wildcard no extra tokens", "session.message.*", "session.message.abc.def", false},
		{"multi token wildcard", "session.>", "session.message.abc", true},
		{"multi token wildcard deep", "session.>", "session.done.abc.def", true},
		{"multi token wildcard mismatch", "permission.>", "session.message.abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := make(chan *Event, 1)
			sub, err := bus.Subscribe(tt.pattern, func(ctx context.Context, event *Event) error {
				received <- event
				return nil
			})
			if err != nil {
				t.Fatalf("Subscribe failed: %v", err)
			}
			defer func() {
				_ = sub.Unsubscribe()
			}()

			if err := bus.Publish(ctx, tt.subject, NewEvent("t", "s", nil)); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}

			select {
			case <-received:
				if !tt.match {
					t.Errorf("Pattern %q should not match subject %q", tt.pattern, tt.subject)
				}
			case <-time.After(100 * time.Millisecond):
				if tt.match {
					t.Errorf("Pattern %q should match subject %q", tt.pattern, tt.subject)
				}
			}
		})
	}
}

func TestMemoryEventBus_OrderedDelivery(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()

	var mu sync.Mutex
	var order []string

	sub, err := bus.Subscribe("session.message.*", func(ctx context.Context, event *Event) error {
		mu.Lock()
		order = append(order, event.Type)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	// Handlers run on the publisher's goroutine, so a single publisher
	// observes its events delivered in order.
	for _, typ := range []string{"first", "second", "third"} {
		if err := bus.Publish(ctx, "session.message.abc", NewEvent(typ, "test", nil)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(order))
	}
	for i, want := range []string{"first", "second", "third"} {
		if order[i] != want {
			t.Errorf("Event %d: expected %q, got %q", i, want, order[i])
		}
	}
}

func TestMemoryEventBus_QueueSubscribeRoundRobin(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()

	var countA, countB int32

	subA, err := bus.QueueSubscribe("work.item", "workers", func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&countA, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("QueueSubscribe failed: %v", err)
	}
	defer func() {
		_ = subA.Unsubscribe()
	}()

	subB, err := bus.QueueSubscribe("work.item", "workers", func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&countB, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("QueueSubscribe failed: %v", err)
	}
	defer func() {
		_ = subB.Unsubscribe()
	}()

	const n = 10
	for i := 0; i < n; i++ {
		if err := bus.Publish(ctx, "work.item", NewEvent("work", "test", nil)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	total := atomic.LoadInt32(&countA) + atomic.LoadInt32(&countB)
	if total != n {
		t.Errorf("Expected %d total deliveries, got %d", n, total)
	}
	if atomic.LoadInt32(&countA) != n/2 || atomic.LoadInt32(&countB) != n/2 {
		t.Errorf("Expected even round-robin split, got A=%d B=%d", countA, countB)
	}
}

func TestMemoryEventBus_RequestReply(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()

	sub, err := bus.Subscribe("service.ping", func(ctx context.Context, event *Event) error {
		reply, _ := event.Data["_reply"].(string)
		if reply == "" {
			t.Error("Expected _reply subject in request data")
			return nil
		}
		return bus.Publish(ctx, reply, NewEvent("pong", "responder", map[string]interface{}{
			"echo": event.Data["value"],
		}))
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	resp, err := bus.Request(ctx, "service.ping", NewEvent("ping", "requester", map[string]interface{}{
		"value": "hello",
	}), time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.Type != "pong" {
		t.Errorf("Expected pong response, got %s", resp.Type)
	}
	if resp.Data["echo"] != "hello" {
		t.Errorf("Expected echoed value, got %v", resp.Data["echo"])
	}
}

func TestMemoryEventBus_RequestTimeout(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()

	_, err := bus.Request(ctx, "nobody.home", NewEvent("ping", "requester", nil), 50*time.Millisecond)
	if err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)
	defer bus.Close()

	ctx := context.Background()
	var count int32

	sub, err := bus.Subscribe("test.subject", func(ctx context.Context, event *Event) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := bus.Publish(ctx, "test.subject", NewEvent("t", "s", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if sub.IsValid() {
		t.Error("Expected subscription to be invalid after unsubscribe")
	}

	if err := bus.Publish(ctx, "test.subject", NewEvent("t", "s", nil)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("Expected 1 delivery, got %d", count)
	}
}

func TestMemoryEventBus_Close(t *testing.T) {
	log := newTestLogger(t)
	bus := NewMemoryEventBus(log)

	bus.Close()

	if bus.IsConnected() {
		t.Error("Expected bus to be disconnected after close")
	}
	if err := bus.Publish(context.Background(), "test.subject", NewEvent("t", "s", nil)); err == nil {
		t.Error("Expected publish on closed bus to fail")
	}
	if _, err := bus.Subscribe("test.subject", func(ctx context.Context, event *Event) error { return nil }); err == nil {
		t.Error("Expected subscribe on closed bus to fail")
	}
}
