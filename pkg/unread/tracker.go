// Package unread tracks, per viewer, whether a conversation has
// activity newer than what they last saw. The watermark lives outside
// the message stream: the notify service records last activity from
// the event stream, and the API records watermarks when a viewer marks
// a conversation read. The unread indicator is a comparison of the
// two, served to the client's low-frequency polling fallback.
package unread

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const activityKey = "conversation:activity"

func readKey(userID string) string { return "read:" + userID }

type Tracker struct {
	rdb *redis.Client
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb}
}

// RecordActivity notes that a conversation saw a new message at t.
// Events within one conversation arrive in commit order, so a plain
// overwrite is enough.
func (t *Tracker) RecordActivity(ctx context.Context, conversationID string, at time.Time) error {
	return t.rdb.HSet(ctx, activityKey, conversationID, at.UnixNano()).Err()
}

// MarkRead persists the viewer's watermark for a conversation.
func (t *Tracker) MarkRead(ctx context.Context, userID, conversationID string, at time.Time) error {
	return t.rdb.HSet(ctx, readKey(userID), conversationID, at.UnixNano()).Err()
}

// LastActivity returns when the conversation last saw a message.
func (t *Tracker) LastActivity(ctx context.Context, conversationID string) (time.Time, bool, error) {
	raw, err := t.rdb.HGet(ctx, activityKey, conversationID).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, ns), true, nil
}

// Unread reports, per conversation, whether activity is newer than the
// viewer's watermark. A conversation with activity but no watermark is
// unread; one with neither is not.
func (t *Tracker) Unread(ctx context.Context, userID string, conversationIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	activity, err := t.rdb.HMGet(ctx, activityKey, conversationIDs...).Result()
	if err != nil {
		return nil, err
	}
	watermarks, err := t.rdb.HMGet(ctx, readKey(userID), conversationIDs...).Result()
	if err != nil {
		return nil, err
	}

	for i, id := range conversationIDs {
		act := parseNano(activity[i])
		if act == 0 {
			out[id] = false
			continue
		}
		out[id] = act > parseNano(watermarks[i])
	}
	return out, nil
}

func parseNano(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
