package reconciler

import (
	"testing"
	"time"

	"github.com/mahaj/streamfeed/pkg/model"
)

func msg(id int64, text string, at time.Time) *model.Message {
	return &model.Message{
		ID:             id,
		ConversationID: "team",
		Sender:         model.Sender{ID: "u1", DisplayName: "Alice", Handle: "alice"},
		Text:           text,
		CreatedAt:      at,
		ExpiresAt:      at.Add(time.Hour),
	}
}

func TestSeedAndOrder(t *testing.T) {
	r := New("team")
	now := time.Now()

	r.Seed([]*model.Message{
		msg(3, "third", now.Add(2*time.Second)),
		msg(1, "first", now),
		msg(2, "second", now.Add(time.Second)),
	})

	got := r.Messages()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Text != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, got[i].Text)
		}
	}
}

func TestCreatedDedup(t *testing.T) {
	r := New("team")
	m := msg(1, "hello", time.Now())

	r.Apply(model.CreatedEvent(m))
	r.Apply(model.CreatedEvent(m))

	if got := r.Messages(); len(got) != 1 {
		t.Fatalf("duplicate created event produced %d messages", len(got))
	}
}

func TestOptimisticSendRoundTrip(t *testing.T) {
	r := New("team")
	m := msg(7, "mine", time.Now())

	// The send response lands first, then the same message arrives
	// over the stream.
	r.ApplyLocal(m)
	r.Apply(model.CreatedEvent(m))

	if got := r.Messages(); len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("optimistic send round-trip produced %+v", got)
	}
}

func TestDeletedEvent(t *testing.T) {
	r := New("team")
	r.Apply(model.CreatedEvent(msg(1, "hello", time.Now())))

	r.Apply(model.DeletedEvent("team", 1))
	if got := r.Messages(); len(got) != 0 {
		t.Fatalf("deleted message still visible: %+v", got)
	}

	// Deleting an id we never saw is not an error.
	r.Apply(model.DeletedEvent("team", 99))
}

func TestRemovedIsAbsorbing(t *testing.T) {
	r := New("team")
	m := msg(1, "hello", time.Now())

	r.Apply(model.CreatedEvent(m))
	r.Apply(model.DeletedEvent("team", 1))

	// Neither a replayed created event nor a resnapshot brings it back.
	r.Apply(model.CreatedEvent(m))
	r.Seed([]*model.Message{m})

	if got := r.Messages(); len(got) != 0 {
		t.Fatalf("removed message resurrected: %+v", got)
	}
}

func TestWatermark(t *testing.T) {
	r := New("team")
	now := time.Now()

	r.Seed([]*model.Message{msg(1, "a", now)})
	if !r.Watermark().Equal(now) {
		t.Fatalf("watermark not seeded: %v", r.Watermark())
	}

	// Viewing: live events advance it.
	r.Apply(model.CreatedEvent(msg(2, "b", now.Add(time.Second))))
	if !r.Watermark().Equal(now.Add(time.Second)) {
		t.Fatalf("watermark did not advance: %v", r.Watermark())
	}

	// Not viewing: it stays put.
	r.SetViewing(false)
	r.Apply(model.CreatedEvent(msg(3, "c", now.Add(2*time.Second))))
	if !r.Watermark().Equal(now.Add(time.Second)) {
		t.Fatalf("watermark advanced while not viewing: %v", r.Watermark())
	}
}

func TestSeedMergesWithExisting(t *testing.T) {
	r := New("team")
	now := time.Now()

	r.Apply(model.CreatedEvent(msg(2, "live", now.Add(time.Second))))
	r.Seed([]*model.Message{msg(1, "snapshot", now), msg(2, "live", now.Add(time.Second))})

	got := r.Messages()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("merge wrong: %+v", got)
	}
}

func TestOldest(t *testing.T) {
	r := New("team")
	if r.Oldest() != 0 {
		t.Fatalf("empty reconciler has oldest %d", r.Oldest())
	}
	now := time.Now()
	r.Seed([]*model.Message{msg(5, "a", now), msg(9, "b", now.Add(time.Second))})
	if r.Oldest() != 5 {
		t.Fatalf("expected oldest 5, got %d", r.Oldest())
	}
}
