package model

type EventType string

const (
	EventCreated EventType = "created"
	EventDeleted EventType = "deleted"
)

// Event is the unit of fanout: one per committed append or remove.
// Created events carry the full message; deleted events carry the id.
// ConversationID is always set so routing never needs to look inside
// the message.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversationId"`
	Message        *Message  `json:"message,omitempty"`
	MessageID      int64     `json:"id,omitempty"`
}

func CreatedEvent(m *Message) Event {
	return Event{Type: EventCreated, ConversationID: m.ConversationID, Message: m, MessageID: m.ID}
}

func DeletedEvent(conversationID string, id int64) Event {
	return Event{Type: EventDeleted, ConversationID: conversationID, MessageID: id}
}
