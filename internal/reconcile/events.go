package reconcile

import (
	"fmt"

	"github.com/redbead/chatsync/internal/wire"
)

// Event is an inbound event the engine knows how to reconcile.
type Event interface {
	isEvent()

	// Name returns the wire event name, used for logs and metrics.
	Name() string
}

// MessageCreatedEvent appends a message to a cached message list.
type MessageCreatedEvent struct {
	wire.MessageCreated
}

func (MessageCreatedEvent) isEvent()     {}
func (MessageCreatedEvent) Name() string { return wire.EventMessageCreated }

// MessageReadEvent flips read flags on a cached message.
type MessageReadEvent struct {
	wire.MessageRead
}

func (MessageReadEvent) isEvent()     {}
func (MessageReadEvent) Name() string { return wire.EventMessageRead }

// ConversationUpdatedEvent pushes a new last-message summary to the
// conversation list.
type ConversationUpdatedEvent struct {
	wire.ConversationUpdated
}

func (ConversationUpdatedEvent) isEvent()     {}
func (ConversationUpdatedEvent) Name() string { return wire.EventConversationUpdated }

// ConversationStatusChangedEvent patches a conversation's status.
type ConversationStatusChangedEvent struct {
	wire.ConversationStatusChanged
}

func (ConversationStatusChangedEvent) isEvent()     {}
func (ConversationStatusChangedEvent) Name() string { return wire.EventConversationStatusChanged }

// ConversationCreatedEvent appends a freshly created conversation.
type ConversationCreatedEvent struct {
	wire.ConversationCreated
}

func (ConversationCreatedEvent) isEvent()     {}
func (ConversationCreatedEvent) Name() string { return wire.EventConversationCreated }

// DecodeInbound maps a wire event name and its loosely-typed payload to a
// typed Event. Names the engine does not reconcile (presence, errors) return
// (nil, nil).
func DecodeInbound(name string, payload any) (Event, error) {
	switch name {
	case wire.EventMessageCreated:
		var p wire.MessageCreated
		if err := wire.Decode(payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return MessageCreatedEvent{p}, nil
	case wire.EventMessageRead:
		var p wire.MessageRead
		if err := wire.Decode(payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return MessageReadEvent{p}, nil
	case wire.EventConversationUpdated:
		var p wire.ConversationUpdated
		if err := wire.Decode(payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ConversationUpdatedEvent{p}, nil
	case wire.EventConversationStatusChanged:
		var p wire.ConversationStatusChanged
		if err := wire.Decode(payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ConversationStatusChangedEvent{p}, nil
	case wire.EventConversationCreated:
		var p wire.ConversationCreated
		if err := wire.Decode(payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ConversationCreatedEvent{p}, nil
	default:
		return nil, nil
	}
}
