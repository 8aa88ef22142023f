// Package store is the authoritative, time-ordered message collection.
// Two implementations share one contract: Scylla for deployments (rows
// written with a TTL so expiry is native) and an in-memory store with a
// reaper goroutine for single-process runs and tests.
package store

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/mahaj/streamfeed/pkg/errs"
	"github.com/mahaj/streamfeed/pkg/model"
)

const (
	// DefaultLimit applies when a list request carries no limit.
	DefaultLimit = 50

	maxTextRunes = 4000
	previewRunes = 120
)

// Actor identifies who is asking for a mutation.
type Actor struct {
	ID        string
	Handle    string
	Moderator bool
}

// ListOptions pages through a conversation. Before is a message id
// cursor: only messages strictly older than it are returned. Zero
// means "from the newest".
type ListOptions struct {
	Limit  int
	Before int64
}

type Store interface {
	// Append validates, assigns id and timestamp atomically with
	// insertion order, resolves the reply snapshot once, and commits.
	Append(ctx context.Context, conversationID string, sender model.Sender, text string, replyToID int64) (*model.Message, error)

	// List returns up to Limit (clamped) non-expired messages,
	// oldest to newest.
	List(ctx context.Context, conversationID string, opts ListOptions) ([]*model.Message, error)

	// Remove hard-deletes a message. Returns the conversation id the
	// message belonged to, for event routing. NotFound if already
	// gone or expired; Forbidden if the actor may not delete it.
	Remove(ctx context.Context, id int64, actor Actor) (conversationID string, err error)

	// Latest returns the newest non-expired message, or nil. This is
	// the cheap probe behind the unread-indicator poll.
	Latest(ctx context.Context, conversationID string) (*model.Message, error)

	Close()
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return errs.Validation("message text must not be empty")
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		return errs.Validation("message text exceeds %d characters", maxTextRunes)
	}
	return nil
}

func validateCursor(before int64) error {
	if before < 0 {
		return errs.Validation("malformed cursor")
	}
	return nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > max {
		limit = max
	}
	return limit
}

// replyRef snapshots the target message for embedding in a reply.
func replyRef(target *model.Message) *model.ReplyRef {
	preview := target.Text
	if utf8.RuneCountInString(preview) > previewRunes {
		runes := []rune(preview)
		preview = string(runes[:previewRunes])
	}
	return &model.ReplyRef{
		MessageID:    target.ID,
		SenderName:   target.DisplayName,
		SenderHandle: target.Handle,
		TextPreview:  preview,
	}
}

// canRemove implements delete authorization: the sender may delete
// their own message, moderators may delete anything, and an automated
// sender's message may additionally be deleted by its mention target
// (see mentionTargetMayDelete).
func canRemove(m *model.Message, actor Actor) bool {
	if actor.Moderator || (actor.ID != "" && m.Sender.ID == actor.ID) {
		return true
	}
	if m.Automated {
		return mentionTargetMayDelete(m, actor)
	}
	return false
}

// mentionTargetMayDelete is a deliberate, named rule: when a bot
// replies to a person or mentions them, that person may remove the
// bot's message even without moderator rights.
func mentionTargetMayDelete(m *model.Message, actor Actor) bool {
	if actor.Handle == "" {
		return false
	}
	if m.ReplyTo != nil && strings.EqualFold(m.ReplyTo.SenderHandle, actor.Handle) {
		return true
	}
	return model.HasMention(m.Text, actor.Handle)
}
