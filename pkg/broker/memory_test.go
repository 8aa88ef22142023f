package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mahaj/streamfeed/pkg/model"
)

func consume(t *testing.T, b *Memory) (events func() []model.Event, stop func()) {
	t.Helper()
	var mu sync.Mutex
	var got []model.Event

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		b.Consume(ctx, func(ev model.Event) {
			mu.Lock()
			got = append(got, ev)
			mu.Unlock()
		})
	}()
	<-started
	// Consume registers synchronously before blocking; give the
	// goroutine a moment to reach that point.
	time.Sleep(10 * time.Millisecond)

	return func() []model.Event {
			mu.Lock()
			defer mu.Unlock()
			return append([]model.Event(nil), got...)
		}, func() {
			cancel()
			<-done
		}
}

func TestPublishReachesAllConsumers(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	eventsA, stopA := consume(t, b)
	eventsB, stopB := consume(t, b)
	defer stopA()
	defer stopB()

	msg := &model.Message{ID: 42, ConversationID: "team", Text: "hi"}
	if err := b.Publish(context.Background(), model.CreatedEvent(msg)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for name, events := range map[string]func() []model.Event{"A": eventsA, "B": eventsB} {
		got := events()
		if len(got) != 1 {
			t.Fatalf("consumer %s: expected 1 event, got %d", name, len(got))
		}
		if got[0].Type != model.EventCreated || got[0].Message.ID != 42 {
			t.Fatalf("consumer %s: bad event %+v", name, got[0])
		}
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	events, stop := consume(t, b)
	defer stop()

	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		b.Publish(ctx, model.DeletedEvent("team", i))
	}

	got := events()
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %d", len(got))
	}
	for i, ev := range got {
		if ev.MessageID != int64(i+1) {
			t.Fatalf("order violated at %d: %+v", i, ev)
		}
	}
}

func TestCancelledConsumerStopsReceiving(t *testing.T) {
	b := NewMemory()
	defer b.Close()

	events, stop := consume(t, b)
	stop()

	b.Publish(context.Background(), model.DeletedEvent("team", 1))
	if got := events(); len(got) != 0 {
		t.Fatalf("cancelled consumer still received %d events", len(got))
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := NewMemory()
	events, stop := consume(t, b)
	b.Close()
	defer stop()

	// Close detaches all consumers; publish becomes a no-op rather
	// than an error.
	if err := b.Publish(context.Background(), model.DeletedEvent("team", 1)); err != nil {
		t.Fatalf("Publish after close: %v", err)
	}
	if got := events(); len(got) != 0 {
		t.Fatalf("closed broker delivered %d events", len(got))
	}
}
