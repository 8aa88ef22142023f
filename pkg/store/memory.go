package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mahaj/streamfeed/pkg/errs"
	"github.com/mahaj/streamfeed/pkg/logger"
	"github.com/mahaj/streamfeed/pkg/metrics"
	"github.com/mahaj/streamfeed/pkg/model"
	"github.com/mahaj/streamfeed/pkg/snowflake"
)

// Memory keeps every conversation in process. Mutations within one
// conversation are serialized by that conversation's mutex; different
// conversations proceed in parallel.
type Memory struct {
	ids       *snowflake.Node
	retention time.Duration
	maxLimit  int

	mu    sync.RWMutex // guards convs and index maps
	convs map[string]*conversation
	index map[int64]string // message id -> conversation id

	stopReaper chan struct{}
	reaperOnce sync.Once
}

type conversation struct {
	mu   sync.Mutex
	msgs map[int64]*model.Message
	last time.Time // newest CreatedAt handed out, keeps the sort key monotonic
}

func NewMemory(ids *snowflake.Node, retention time.Duration, maxLimit int) *Memory {
	if maxLimit <= 0 {
		maxLimit = 200
	}
	return &Memory{
		ids:        ids,
		retention:  retention,
		maxLimit:   maxLimit,
		convs:      make(map[string]*conversation),
		index:      make(map[int64]string),
		stopReaper: make(chan struct{}),
	}
}

func (s *Memory) getOrCreate(conversationID string) *conversation {
	s.mu.RLock()
	conv, ok := s.convs[conversationID]
	s.mu.RUnlock()
	if ok {
		return conv
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok = s.convs[conversationID]; ok {
		return conv
	}
	conv = &conversation{msgs: make(map[int64]*model.Message)}
	s.convs[conversationID] = conv
	return conv
}

func (s *Memory) get(conversationID string) *conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.convs[conversationID]
}

func (s *Memory) Append(ctx context.Context, conversationID string, sender model.Sender, text string, replyToID int64) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateText(text); err != nil {
		return nil, err
	}

	conv := s.getOrCreate(conversationID)
	conv.mu.Lock()

	now := time.Now()

	// The reply snapshot is resolved exactly once, here. The target
	// must still be live in the same conversation.
	var reply *model.ReplyRef
	if replyToID != 0 {
		target, ok := conv.msgs[replyToID]
		if !ok || target.Expired(now) {
			conv.mu.Unlock()
			return nil, errs.Validation("reply target %d not found", replyToID)
		}
		reply = replyRef(target)
	}

	if now.Before(conv.last) {
		now = conv.last
	}
	conv.last = now

	m := &model.Message{
		ID:             s.ids.Generate(),
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		ReplyTo:        reply,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.retention),
	}
	conv.msgs[m.ID] = m
	conv.mu.Unlock()

	s.mu.Lock()
	s.index[m.ID] = conversationID
	s.mu.Unlock()

	metrics.MessagesAppended.Inc()
	return copyMessage(m), nil
}

func (s *Memory) List(ctx context.Context, conversationID string, opts ListOptions) ([]*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCursor(opts.Before); err != nil {
		return nil, err
	}
	limit := clampLimit(opts.Limit, s.maxLimit)

	conv := s.get(conversationID)
	if conv == nil {
		return nil, nil
	}

	now := time.Now()
	conv.mu.Lock()
	out := make([]*model.Message, 0, limit)
	for id, m := range conv.msgs {
		if m.Expired(now) {
			continue
		}
		if opts.Before != 0 && id >= opts.Before {
			continue
		}
		out = append(out, copyMessage(m))
	}
	conv.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return model.Less(out[i], out[j]) })
	if len(out) > limit {
		// The page ends at the cursor, so keep the newest window.
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Memory) Remove(ctx context.Context, id int64, actor Actor) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	conversationID, ok := s.index[id]
	conv := s.convs[conversationID]
	s.mu.RUnlock()
	if !ok || conv == nil {
		return "", errs.NotFound("message %d not found", id)
	}

	now := time.Now()
	conv.mu.Lock()
	m, ok := conv.msgs[id]
	if !ok || m.Expired(now) {
		conv.mu.Unlock()
		return "", errs.NotFound("message %d not found", id)
	}
	if !canRemove(m, actor) {
		conv.mu.Unlock()
		return "", errs.Forbidden("actor %s may not delete message %d", actor.ID, id)
	}
	delete(conv.msgs, id)
	conv.mu.Unlock()

	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()

	metrics.MessagesDeleted.Inc()
	return conversationID, nil
}

func (s *Memory) Latest(ctx context.Context, conversationID string) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conv := s.get(conversationID)
	if conv == nil {
		return nil, nil
	}

	now := time.Now()
	conv.mu.Lock()
	defer conv.mu.Unlock()
	var latest *model.Message
	for _, m := range conv.msgs {
		if m.Expired(now) {
			continue
		}
		if latest == nil || model.Less(latest, m) {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyMessage(latest), nil
}

// StartReaper purges expired messages every interval until Close.
// Purges do not emit delete events; clients converge on their next
// snapshot.
func (s *Memory) StartReaper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.purge(time.Now()); n > 0 {
					logger.Debug("reaper purged expired messages", "count", n)
				}
			case <-s.stopReaper:
				return
			}
		}
	}()
}

func (s *Memory) purge(now time.Time) int {
	s.mu.RLock()
	convs := make([]*conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		convs = append(convs, conv)
	}
	s.mu.RUnlock()

	var expired []int64
	for _, conv := range convs {
		conv.mu.Lock()
		for id, m := range conv.msgs {
			if m.Expired(now) {
				delete(conv.msgs, id)
				expired = append(expired, id)
			}
		}
		conv.mu.Unlock()
	}

	if len(expired) > 0 {
		s.mu.Lock()
		for _, id := range expired {
			delete(s.index, id)
		}
		s.mu.Unlock()
		metrics.MessagesExpired.Add(float64(len(expired)))
	}
	return len(expired)
}

func (s *Memory) Close() {
	s.reaperOnce.Do(func() { close(s.stopReaper) })
}

func copyMessage(m *model.Message) *model.Message {
	out := *m
	if m.ReplyTo != nil {
		ref := *m.ReplyTo
		out.ReplyTo = &ref
	}
	return &out
}
