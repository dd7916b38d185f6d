// Package chat defines the domain types shared by the cache, the
// reconciliation engine, and the REST loaders.
package chat

import "time"

// ConversationStatus enumerates the lifecycle states of a conversation.
type ConversationStatus string

const (
	StatusActive  ConversationStatus = "ACTIVE"
	StatusPending ConversationStatus = "PENDING"
	StatusClosed  ConversationStatus = "CLOSED"
)

// SenderType enumerates who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "CUSTOMER"
	SenderAgent    SenderType = "AGENT"
	SenderBot      SenderType = "BOT"
)

// IsAdmin reports whether the sender acts on the admin side of a
// conversation (agents and bots, as opposed to the customer).
func (s SenderType) IsAdmin() bool {
	return s == SenderAgent || s == SenderBot
}

// MessageType enumerates the supported message kinds.
type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
	MessageFile  MessageType = "FILE"
)

// Media is a reference to an already-uploaded media object. Only the ID is
// ever transmitted over the socket; the rest is resolved server-side.
type Media struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Message is a single message within a conversation.
//
// The read flags are monotonic: once IsRead or IsAdminRead is true,
// reconciliation never resets it to false.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SentAt         time.Time   `json:"sentAt"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	Sender         SenderType  `json:"sender"`
	IsRead         bool        `json:"isRead"`
	IsAdminRead    bool        `json:"isAdminRead"`
	Media          []Media     `json:"media,omitempty"`
}

// Participant references one side of a conversation.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Conversation is a thread between a customer and an agent or bot.
//
// LastMessage, when present, always reflects the most recently appended
// message for the conversation held in the cache.
type Conversation struct {
	ID               string             `json:"id"`
	StartedAt        time.Time          `json:"startedAt"`
	EndedAt          *time.Time         `json:"endedAt,omitempty"`
	Status           ConversationStatus `json:"status"`
	User             *Participant       `json:"user,omitempty"`
	Bot              *Participant       `json:"bot,omitempty"`
	Client           *Participant       `json:"client,omitempty"`
	MessageCount     int                `json:"messageCount"`
	UnreadCount      int                `json:"unreadCount"`
	AdminUnreadCount int                `json:"adminUnreadCount"`
	LastMessage      *Message           `json:"lastMessage,omitempty"`
}
