// Package wire defines the socket payload shapes exchanged with the
// conversation namespace, and helpers to decode the loosely-typed maps the
// transport delivers into them.
package wire

import (
	"encoding/json"
	"time"

	"github.com/redbead/chatsync/internal/chat"
)

// Inbound event names (server to client).
const (
	EventMessageCreated            = "message-created"
	EventMessageRead               = "message-read"
	EventConversationUpdated       = "conversation-updated"
	EventConversationStatusChanged = "conversation-status-changed"
	EventConversationCreated       = "conversation-created"
	EventUserConnected             = "user-connected"
	EventUserDisconnected          = "user-disconnected"
	EventUserTyping                = "user-typing"
	EventError                     = "error"
)

// Outbound event names (client to server).
const (
	EventSendMessage       = "send-message"
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventTyping            = "typing"
	EventMarkRead          = "mark-read"
)

// MessageCreated announces a message appended to a conversation.
type MessageCreated struct {
	ConversationID string       `json:"conversationId"`
	Message        chat.Message `json:"message"`
}

// MessageRead announces that an actor read a message. Reader carries the
// actor role: customer reads flip isRead, admin-side reads flip isAdminRead.
type MessageRead struct {
	ConversationID string          `json:"conversationId"`
	MessageID      string          `json:"messageId"`
	Reader         chat.SenderType `json:"reader"`
	ReadAt         time.Time       `json:"readAt"`
}

// ConversationUpdated pushes a new last-message summary to list views.
type ConversationUpdated struct {
	ConversationID string           `json:"conversationId"`
	MessageID      string           `json:"messageId"`
	Content        string           `json:"content"`
	Type           chat.MessageType `json:"type"`
	Sender         chat.SenderType  `json:"sender"`
	SentAt         time.Time        `json:"sentAt"`
}

// ConversationStatusChanged announces a status transition.
type ConversationStatusChanged struct {
	ConversationID string                  `json:"conversationId"`
	Status         chat.ConversationStatus `json:"status"`
}

// ConversationCreated carries a full, freshly created conversation.
type ConversationCreated struct {
	Conversation chat.Conversation `json:"conversation"`
}

// Typing is the ephemeral typing indicator for one actor.
type Typing struct {
	ConversationID string `json:"conversationId"`
	ActorID        string `json:"actorId"`
	IsTyping       bool   `json:"isTyping"`
}

// UserPresence is emitted for user-connected / user-disconnected.
type UserPresence struct {
	UserID string `json:"userId"`
}

// OutboundMessage is the user-supplied part of a send-message payload.
// Media objects must already be uploaded; only their ids travel.
type OutboundMessage struct {
	Type     chat.MessageType `json:"type"`
	Content  string           `json:"content"`
	MediaIDs []string         `json:"mediaIds,omitempty"`
}

// Decode converts a loosely-typed payload (typically map[string]any from the
// socket) into dst via a JSON round trip.
func Decode(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
