package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"github.com/mahaj/streamfeed/pkg/db"
	"github.com/mahaj/streamfeed/pkg/errs"
	"github.com/mahaj/streamfeed/pkg/metrics"
	"github.com/mahaj/streamfeed/pkg/model"
	"github.com/mahaj/streamfeed/pkg/snowflake"
)

// Scylla persists messages partitioned by conversation_id and
// clustered by id DESC, so the newest page is a single-partition read.
// Rows are written USING TTL, which makes the retention reaper the
// database's problem; expires_at is stored alongside for the wire
// shape. A message_conversations lookup table maps a bare message id
// (all a DELETE request carries) back to its partition.
type Scylla struct {
	sess      *db.Session
	ids       *snowflake.Node
	retention time.Duration
	maxLimit  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const messageColumns = `conversation_id, id, sender_id, sender_name, sender_handle, sender_automated,
	body, reply_to_id, reply_to_name, reply_to_handle, reply_to_preview, created_at, expires_at`

func NewScylla(sess *db.Session, ids *snowflake.Node, retention time.Duration, maxLimit int) *Scylla {
	if maxLimit <= 0 {
		maxLimit = 200
	}
	return &Scylla{
		sess:      sess,
		ids:       ids,
		retention: retention,
		maxLimit:  maxLimit,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor serializes appends per conversation so created_at strictly
// increases within a partition.
func (s *Scylla) lockFor(conversationID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conversationID] = l
	}
	return l
}

func (s *Scylla) ttlSeconds() int {
	return int(s.retention / time.Second)
}

func (s *Scylla) Append(ctx context.Context, conversationID string, sender model.Sender, text string, replyToID int64) (*model.Message, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	l := s.lockFor(conversationID)
	l.Lock()
	defer l.Unlock()

	var reply *model.ReplyRef
	if replyToID != 0 {
		target, err := s.getByID(ctx, replyToID)
		if err != nil {
			if errs.IsNotFound(err) {
				return nil, errs.Validation("reply target %d not found", replyToID)
			}
			return nil, err
		}
		if target.ConversationID != conversationID {
			return nil, errs.Validation("reply target %d not found", replyToID)
		}
		reply = replyRef(target)
	}

	now := time.Now()
	m := &model.Message{
		ID:             s.ids.Generate(),
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		ReplyTo:        reply,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.retention),
	}

	var replyID int64
	var replyName, replyHandle, replyPreview string
	if reply != nil {
		replyID, replyName, replyHandle, replyPreview = reply.MessageID, reply.SenderName, reply.SenderHandle, reply.TextPreview
	}

	q := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) USING TTL ?`
	if err := s.sess.Query(q,
		m.ConversationID, m.ID, m.Sender.ID, m.DisplayName, m.Handle, m.Automated,
		m.Text, replyID, replyName, replyHandle, replyPreview, m.CreatedAt, m.ExpiresAt,
		s.ttlSeconds(),
	).WithContext(ctx).Exec(); err != nil {
		return nil, err
	}

	if err := s.sess.Query(
		`INSERT INTO message_conversations (id, conversation_id) VALUES (?, ?) USING TTL ?`,
		m.ID, m.ConversationID, s.ttlSeconds(),
	).WithContext(ctx).Exec(); err != nil {
		return nil, err
	}

	metrics.MessagesAppended.Inc()
	return m, nil
}

func (s *Scylla) List(ctx context.Context, conversationID string, opts ListOptions) ([]*model.Message, error) {
	if err := validateCursor(opts.Before); err != nil {
		return nil, err
	}
	limit := clampLimit(opts.Limit, s.maxLimit)

	var iter *gocql.Iter
	if opts.Before != 0 {
		iter = s.sess.Query(
			`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? AND id < ? LIMIT ?`,
			conversationID, opts.Before, limit,
		).WithContext(ctx).Iter()
	} else {
		iter = s.sess.Query(
			`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? LIMIT ?`,
			conversationID, limit,
		).WithContext(ctx).Iter()
	}

	now := time.Now()
	var newestFirst []*model.Message
	for {
		m, ok := scanMessage(iter)
		if !ok {
			break
		}
		// TTL already hides expired rows; the check guards clock skew
		// between writer and reader.
		if m.Expired(now) {
			continue
		}
		newestFirst = append(newestFirst, m)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	// Clustering order is newest first; display order is oldest first.
	out := make([]*model.Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(out)-1-i] = m
	}
	return out, nil
}

func (s *Scylla) Remove(ctx context.Context, id int64, actor Actor) (string, error) {
	m, err := s.getByID(ctx, id)
	if err != nil {
		return "", err
	}
	if m.Expired(time.Now()) {
		return "", errs.NotFound("message %d not found", id)
	}
	if !canRemove(m, actor) {
		return "", errs.Forbidden("actor %s may not delete message %d", actor.ID, id)
	}

	if err := s.sess.Query(
		`DELETE FROM messages WHERE conversation_id = ? AND id = ?`,
		m.ConversationID, id,
	).WithContext(ctx).Exec(); err != nil {
		return "", err
	}
	if err := s.sess.Query(
		`DELETE FROM message_conversations WHERE id = ?`, id,
	).WithContext(ctx).Exec(); err != nil {
		return "", err
	}

	metrics.MessagesDeleted.Inc()
	return m.ConversationID, nil
}

func (s *Scylla) Latest(ctx context.Context, conversationID string) (*model.Message, error) {
	iter := s.sess.Query(
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? LIMIT 1`,
		conversationID,
	).WithContext(ctx).Iter()
	m, ok := scanMessage(iter)
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if !ok || m.Expired(time.Now()) {
		return nil, nil
	}
	return m, nil
}

func (s *Scylla) getByID(ctx context.Context, id int64) (*model.Message, error) {
	var conversationID string
	if err := s.sess.Query(
		`SELECT conversation_id FROM message_conversations WHERE id = ?`, id,
	).WithContext(ctx).Scan(&conversationID); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, errs.NotFound("message %d not found", id)
		}
		return nil, err
	}

	iter := s.sess.Query(
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? AND id = ?`,
		conversationID, id,
	).WithContext(ctx).Iter()
	m, ok := scanMessage(iter)
	if err := iter.Close(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound("message %d not found", id)
	}
	return m, nil
}

func (s *Scylla) Close() {}

func scanMessage(iter *gocql.Iter) (*model.Message, bool) {
	var m model.Message
	var replyID int64
	var replyName, replyHandle, replyPreview string

	ok := iter.Scan(
		&m.ConversationID, &m.ID, &m.Sender.ID, &m.DisplayName, &m.Handle, &m.Automated,
		&m.Text, &replyID, &replyName, &replyHandle, &replyPreview, &m.CreatedAt, &m.ExpiresAt,
	)
	if !ok {
		return nil, false
	}
	if replyID != 0 {
		m.ReplyTo = &model.ReplyRef{
			MessageID:    replyID,
			SenderName:   replyName,
			SenderHandle: replyHandle,
			TextPreview:  replyPreview,
		}
	}
	return &m, true
}
