// Package reconciler merges the three delivery paths a client sees -
// initial snapshot, live push events, and its own optimistic writes -
// into one deduplicated, causally-ordered view of a conversation. It
// also owns the idempotent delete policy, the mention suggester and
// the unread polling fallback.
package reconciler

import (
	"sort"
	"sync"
	"time"

	"github.com/mahaj/streamfeed/pkg/model"
)

// Reconciler holds the per-view state. One is created when a
// conversation view opens and discarded when it closes; nothing here
// is global.
type Reconciler struct {
	conversationID string

	mu       sync.Mutex
	messages map[int64]*model.Message
	// removed is the absorbing end state of a message's lifecycle: an
	// id in here never becomes visible again, whatever arrives later.
	removed   map[int64]bool
	watermark time.Time
	viewing   bool

	onChange func()
}

func New(conversationID string) *Reconciler {
	return &Reconciler{
		conversationID: conversationID,
		messages:       make(map[int64]*model.Message),
		removed:        make(map[int64]bool),
		viewing:        true,
	}
}

// OnChange registers a callback invoked after every visible-state
// change. Used by UIs to re-render.
func (r *Reconciler) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Reconciler) notify() {
	if r.onChange != nil {
		go r.onChange()
	}
}

// Seed merges a snapshot. Messages already removed locally stay
// removed; everything else is inserted or refreshed. The watermark
// advances to the newest seeded message when the viewer is looking.
func (r *Reconciler) Seed(msgs []*model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		if m == nil || r.removed[m.ID] {
			continue
		}
		r.messages[m.ID] = m
		r.advanceWatermark(m.CreatedAt)
	}
	r.notify()
}

// Apply merges one live event. Duplicate created events (the client's
// own optimistic send round-tripping through the stream, or a
// reconnect replay) are ignored; deleted events for unknown ids are
// not an error.
func (r *Reconciler) Apply(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case model.EventCreated:
		if ev.Message == nil || r.removed[ev.Message.ID] {
			return
		}
		if _, ok := r.messages[ev.Message.ID]; ok {
			return
		}
		r.messages[ev.Message.ID] = ev.Message
		r.advanceWatermark(ev.Message.CreatedAt)
		r.notify()

	case model.EventDeleted:
		r.removed[ev.MessageID] = true
		if _, ok := r.messages[ev.MessageID]; ok {
			delete(r.messages, ev.MessageID)
			r.notify()
		}
	}
}

// ApplyLocal records the server response of the client's own send.
// The later created event for the same id deduplicates in Apply.
func (r *Reconciler) ApplyLocal(m *model.Message) {
	r.Apply(model.CreatedEvent(m))
}

func (r *Reconciler) advanceWatermark(at time.Time) {
	if r.viewing && at.After(r.watermark) {
		r.watermark = at
	}
}

// SetViewing flips whether the viewer is actively looking at this
// conversation. Only an active viewer's watermark advances on new
// messages.
func (r *Reconciler) SetViewing(viewing bool) {
	r.mu.Lock()
	r.viewing = viewing
	r.mu.Unlock()
}

// Watermark is the timestamp up to which the viewer has seen this
// conversation.
func (r *Reconciler) Watermark() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watermark
}

func (r *Reconciler) ConversationID() string { return r.conversationID }

// Messages returns the visible view, ordered oldest to newest.
func (r *Reconciler) Messages() []*model.Message {
	r.mu.Lock()
	out := make([]*model.Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return model.Less(out[i], out[j]) })
	return out
}

// Oldest returns the id of the oldest visible message, for use as a
// pagination cursor. Zero when empty.
func (r *Reconciler) Oldest() int64 {
	msgs := r.Messages()
	if len(msgs) == 0 {
		return 0
	}
	return msgs[0].ID
}
