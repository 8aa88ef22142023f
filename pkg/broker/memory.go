package broker

import (
	"context"
	"sync"

	"github.com/mahaj/streamfeed/pkg/metrics"
	"github.com/mahaj/streamfeed/pkg/model"
)

// Memory is the single-process broker. Publish delivers inline, so
// events reach consumers in exactly the order the store committed
// them; consumers are expected to hand off to their own buffers
// immediately (the gateway hub does).
type Memory struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(model.Event)
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]func(model.Event))}
}

func (b *Memory) Publish(ctx context.Context, ev model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs {
		fn(ev)
	}
	return nil
}

func (b *Memory) Consume(ctx context.Context, fn func(model.Event)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return context.Canceled
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
	return ctx.Err()
}

func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[int]func(model.Event))
	return nil
}
