package main

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mahaj/streamfeed/pkg/logger"
	"github.com/mahaj/streamfeed/pkg/metrics"
	"github.com/mahaj/streamfeed/pkg/model"
)

// Hub routes fanout events to the live subscriptions of this gateway
// instance. The broker guarantees per-conversation order on the way
// in; the hub preserves it by handing each subscriber its payloads
// from a single dispatch goroutine.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscriber]bool // conversation id -> subscriptions

	register   chan *Subscriber
	unregister chan *Subscriber
}

func NewHub() *Hub {
	return &Hub{
		subs:       make(map[string]map[*Subscriber]bool),
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.subs[sub.ConversationID] == nil {
				h.subs[sub.ConversationID] = make(map[*Subscriber]bool)
			}
			h.subs[sub.ConversationID][sub] = true
			h.mu.Unlock()

			metrics.StreamConnections.Inc()
			logger.Info("subscription opened",
				"connection", sub.ConnectionID, "user", sub.UserID, "conversation", sub.ConversationID)

		case sub := <-h.unregister:
			h.drop(sub, "disconnect")
		}
	}
}

// Dispatch delivers one event to every subscription of its
// conversation. Delivery is at-most-once and never blocks: a
// subscriber whose buffer is full is dropped on the spot so one
// stalled client cannot back up the publish path.
func (h *Hub) Dispatch(ev model.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to marshal fanout event", "error", err)
		return
	}

	h.mu.Lock()
	var stale []*Subscriber
	for sub := range h.subs[ev.ConversationID] {
		select {
		case sub.send <- payload:
			atomic.StoreInt64(&sub.lastDelivered, ev.MessageID)
		default:
			stale = append(stale, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range stale {
		metrics.FanoutDropped.Inc()
		h.drop(sub, "slow consumer")
	}
}

func (h *Hub) drop(sub *Subscriber, reason string) {
	h.mu.Lock()
	subs, ok := h.subs[sub.ConversationID]
	if ok {
		if _, ok = subs[sub]; ok {
			delete(subs, sub)
			close(sub.send)
			if len(subs) == 0 {
				delete(h.subs, sub.ConversationID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		metrics.StreamConnections.Dec()
		logger.Info("subscription closed",
			"connection", sub.ConnectionID, "user", sub.UserID,
			"conversation", sub.ConversationID, "reason", reason,
			"last_delivered", atomic.LoadInt64(&sub.lastDelivered))
	}
}
