package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mahaj/streamfeed/pkg/model"
)

func testSubscriber(conversation string, buffer int) *Subscriber {
	return &Subscriber{
		ConnectionID:   1,
		ConversationID: conversation,
		UserID:         "u1",
		send:           make(chan []byte, buffer),
	}
}

func registerAndWait(t *testing.T, h *Hub, sub *Subscriber) {
	t.Helper()
	h.register <- sub
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		_, ok := h.subs[sub.ConversationID][sub]
		h.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("subscriber never registered")
}

func TestDispatchReachesAllSubscribers(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := testSubscriber("team", 4)
	b := testSubscriber("team", 4)
	other := testSubscriber("random", 4)
	registerAndWait(t, h, a)
	registerAndWait(t, h, b)
	registerAndWait(t, h, other)

	msg := &model.Message{ID: 7, ConversationID: "team", Text: "hi"}
	h.Dispatch(model.CreatedEvent(msg))

	for _, sub := range []*Subscriber{a, b} {
		select {
		case payload := <-sub.send:
			var ev model.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
			if ev.Type != model.EventCreated || ev.Message == nil || ev.Message.ID != 7 {
				t.Fatalf("bad event: %+v", ev)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}

	select {
	case <-other.send:
		t.Fatal("event leaked to another conversation")
	default:
	}
}

func TestDispatchPreservesOrder(t *testing.T) {
	h := NewHub()
	go h.Run()

	sub := testSubscriber("team", 8)
	registerAndWait(t, h, sub)

	for i := int64(1); i <= 5; i++ {
		h.Dispatch(model.CreatedEvent(&model.Message{ID: i, ConversationID: "team"}))
	}
	for i := int64(1); i <= 5; i++ {
		payload := <-sub.send
		var ev model.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Message.ID != i {
			t.Fatalf("expected id %d, got %d", i, ev.Message.ID)
		}
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	h := NewHub()
	go h.Run()

	slow := testSubscriber("team", 1)
	fast := testSubscriber("team", 8)
	registerAndWait(t, h, slow)
	registerAndWait(t, h, fast)

	// The first event fills the slow buffer; the second overflows it.
	h.Dispatch(model.CreatedEvent(&model.Message{ID: 1, ConversationID: "team"}))
	h.Dispatch(model.CreatedEvent(&model.Message{ID: 2, ConversationID: "team"}))

	h.mu.Lock()
	_, slowStill := h.subs["team"][slow]
	_, fastStill := h.subs["team"][fast]
	h.mu.Unlock()
	if slowStill {
		t.Fatal("slow subscriber should have been dropped")
	}
	if !fastStill {
		t.Fatal("fast subscriber should survive")
	}

	// A dropped subscriber's channel is closed after its buffered
	// payloads drain.
	<-slow.send
	if _, open := <-slow.send; open {
		t.Fatal("expected closed send channel")
	}
}

func TestUnregisterRemovesSubscriber(t *testing.T) {
	h := NewHub()
	go h.Run()

	sub := testSubscriber("team", 4)
	registerAndWait(t, h, sub)

	h.unregister <- sub
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		_, ok := h.subs["team"]
		h.mu.Unlock()
		if !ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("conversation bucket not cleaned up after last unregister")
}
