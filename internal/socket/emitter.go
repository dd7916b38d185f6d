package socket

import (
	"go.uber.org/zap"

	"github.com/redbead/chatsync/internal/wire"
	"github.com/redbead/chatsync/pkg/logger"
	"github.com/redbead/chatsync/pkg/metrics"
)

// transport is the subset of Client the emitters need. Tests substitute a
// spy to assert that nothing is emitted while disconnected.
type transport interface {
	Connected() bool
	Emit(event string, data map[string]any) error
}

// Emitter translates user intents into outbound socket events.
//
// Every send is fire-and-forget: there is no acknowledgment tracking and no
// retry queue. The authoritative state change arrives later as an inbound
// event, reconciled by the engine; callers that need delivery guarantees must
// watch the connection status and re-issue.
type Emitter struct {
	transport transport
	log       *logger.Logger
}

// NewEmitter creates an Emitter on top of a transport.
func NewEmitter(t transport, log *logger.Logger) *Emitter {
	if log == nil {
		log = logger.Nop()
	}
	return &Emitter{transport: t, log: log}
}

// SendMessage dispatches a message to a conversation. It returns false when
// the connection is not active and the send was dropped. Media travels as id
// references only; the objects must already be uploaded elsewhere.
func (e *Emitter) SendMessage(conversationID string, msg wire.OutboundMessage) bool {
	if !e.guard(wire.EventSendMessage, conversationID) {
		return false
	}

	payload := map[string]any{
		"conversationId": conversationID,
		"type":           string(msg.Type),
		"content":        msg.Content,
	}
	if len(msg.MediaIDs) > 0 {
		payload["mediaIds"] = msg.MediaIDs
	}

	if err := e.transport.Emit(wire.EventSendMessage, payload); err != nil {
		e.log.Warn("send-message dropped", zap.String("conversationId", conversationID), zap.Error(err))
		metrics.RecordDroppedEmit(wire.EventSendMessage)
		return false
	}
	return true
}

// JoinConversation asks the server to scope per-conversation events to this
// observer. No-op while disconnected.
func (e *Emitter) JoinConversation(conversationID string) {
	if !e.guard(wire.EventJoinConversation, conversationID) {
		return
	}
	_ = e.transport.Emit(wire.EventJoinConversation, map[string]any{
		"conversationId": conversationID,
	})
}

// LeaveConversation reverses JoinConversation. No-op while disconnected.
func (e *Emitter) LeaveConversation(conversationID string) {
	if !e.guard(wire.EventLeaveConversation, conversationID) {
		return
	}
	_ = e.transport.Emit(wire.EventLeaveConversation, map[string]any{
		"conversationId": conversationID,
	})
}

// SetTypingStatus broadcasts the local actor's typing state. Fire-and-forget,
// no retry; no-op while disconnected.
func (e *Emitter) SetTypingStatus(conversationID string, isTyping bool) {
	if !e.guard(wire.EventTyping, conversationID) {
		return
	}
	_ = e.transport.Emit(wire.EventTyping, map[string]any{
		"conversationId": conversationID,
		"isTyping":       isTyping,
	})
}

// MarkMessageAsRead reports a message as read. The durable flag flip arrives
// back as an inbound message-read event; this call mutates nothing locally.
func (e *Emitter) MarkMessageAsRead(conversationID, messageID string) {
	if !e.guard(wire.EventMarkRead, conversationID) {
		return
	}
	_ = e.transport.Emit(wire.EventMarkRead, map[string]any{
		"conversationId": conversationID,
		"messageId":      messageID,
	})
}

func (e *Emitter) guard(event, conversationID string) bool {
	if e.transport.Connected() {
		return true
	}
	e.log.Warn("dropping outbound action: socket disconnected",
		zap.String("event", event),
		zap.String("conversationId", conversationID))
	metrics.RecordDroppedEmit(event)
	return false
}
