package model

import "time"

// Sender is the denormalized sender snapshot captured at send time.
// Historical messages keep rendering correctly even if the profile
// behind them changes later.
type Sender struct {
	ID          string `json:"senderId"`
	DisplayName string `json:"senderDisplayName"`
	Handle      string `json:"senderHandle"`
	Automated   bool   `json:"senderIsAutomated"`
}

// ReplyRef is a snapshot of the replied-to message taken when the reply
// is created. It is a value copy, not a foreign key: the original may
// expire or be deleted while the reply lives on.
type ReplyRef struct {
	MessageID    int64  `json:"messageId"`
	SenderName   string `json:"senderName"`
	SenderHandle string `json:"senderHandle"`
	TextPreview  string `json:"textPreview"`
}

type Message struct {
	ID             int64  `json:"id"`
	ConversationID string `json:"conversationId"`
	Sender
	Text      string    `json:"text"`
	ReplyTo   *ReplyRef `json:"replyTo,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the message has passed its retention window.
func (m *Message) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}

// Less orders messages for display: by CreatedAt, ties broken by ID.
// Snowflake ids grow with time, so id order and (CreatedAt, ID) order
// agree.
func Less(a, b *Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
