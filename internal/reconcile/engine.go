// Package reconcile applies inbound conversation events to the client-side
// query cache, one consistent mutation per event.
package reconcile

import (
	"go.uber.org/zap"

	"github.com/redbead/chatsync/internal/cache"
	"github.com/redbead/chatsync/internal/chat"
	"github.com/redbead/chatsync/pkg/logger"
	"github.com/redbead/chatsync/pkg/metrics"
)

const (
	outcomeApplied = "applied"
	outcomeSkipped = "skipped"
	outcomeError   = "error"
)

// Engine reconciles inbound events against the query cache.
//
// Every handler follows the same protocol: cancel in-flight fetches for the
// affected key, read the current value, skip silently when nothing is cached,
// compute a replacement via a pure reducer, and write it back wholesale.
// A missing cache entry means no observer cares about that data; it is never
// an error.
type Engine struct {
	store cache.Store
	log   *logger.Logger
}

// New creates an Engine writing through store.
func New(store cache.Store, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{store: store, log: log}
}

// Apply reconciles a single event. It never panics and never blocks event
// delivery: one bad event must not take down the loop that feeds it.
func (e *Engine) Apply(evt Event) {
	if evt == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordEvent(evt.Name(), outcomeError)
			e.log.Error("reconcile handler panicked",
				zap.String("event", evt.Name()),
				zap.Any("panic", r))
		}
	}()

	var applied bool
	switch ev := evt.(type) {
	case MessageCreatedEvent:
		applied = e.applyMessageCreated(ev)
	case MessageReadEvent:
		applied = e.applyMessageRead(ev)
	case ConversationUpdatedEvent:
		applied = e.applyConversationUpdated(ev)
	case ConversationStatusChangedEvent:
		applied = e.applyStatusChanged(ev)
	case ConversationCreatedEvent:
		applied = e.applyConversationCreated(ev)
	default:
		return
	}

	if applied {
		metrics.RecordEvent(evt.Name(), outcomeApplied)
	} else {
		metrics.RecordEvent(evt.Name(), outcomeSkipped)
		e.log.Debug("no cached data to reconcile", zap.String("event", evt.Name()))
	}
}

func (e *Engine) applyMessageCreated(ev MessageCreatedEvent) bool {
	key := cache.MessagesKey(ev.ConversationID)
	e.store.CancelInFlight(key)

	pages, ok := messagePagesAt(e.store, key)
	if !ok {
		return false
	}
	e.store.Set(key, appendMessage(pages, ev.Message))
	return true
}

func (e *Engine) applyMessageRead(ev MessageReadEvent) bool {
	admin := ev.Reader.IsAdmin()

	key := cache.MessagesKey(ev.ConversationID)
	e.store.CancelInFlight(key)

	applied := false
	if pages, ok := messagePagesAt(e.store, key); ok {
		if next, found := markMessageRead(pages, ev.MessageID, admin); found {
			e.store.Set(key, next)
			applied = true
		}
	}

	// Mirror the flag onto the list view's lastMessage summary.
	listKey := cache.ConversationsKey()
	e.store.CancelInFlight(listKey)
	if list, ok := conversationPagesAt(e.store, listKey); ok {
		if next, found := patchLastMessageRead(list, ev.ConversationID, ev.MessageID, admin); found {
			e.store.Set(listKey, next)
			applied = true
		}
	}
	return applied
}

func (e *Engine) applyConversationUpdated(ev ConversationUpdatedEvent) bool {
	key := cache.ConversationsKey()
	e.store.CancelInFlight(key)

	pages, ok := conversationPagesAt(e.store, key)
	if !ok {
		return false
	}
	next, created := bumpConversation(pages, ev.ConversationUpdated)
	e.store.Set(key, next)
	if created {
		e.log.Debug("synthesized conversation entry",
			zap.String("conversationId", ev.ConversationID))
	}
	return true
}

func (e *Engine) applyStatusChanged(ev ConversationStatusChangedEvent) bool {
	key := cache.ConversationsKey()
	e.store.CancelInFlight(key)

	applied := false
	if pages, ok := conversationPagesAt(e.store, key); ok {
		if next, found := patchStatus(pages, ev.ConversationID, ev.Status); found {
			e.store.Set(key, next)
			applied = true
		}
	}

	// Detail invalidation is attempted even when the list patch no-ops.
	e.store.Invalidate(cache.ConversationKey(ev.ConversationID))
	return applied
}

func (e *Engine) applyConversationCreated(ev ConversationCreatedEvent) bool {
	key := cache.ConversationsKey()
	e.store.CancelInFlight(key)

	pages, ok := conversationPagesAt(e.store, key)
	if !ok {
		return false
	}
	e.store.Set(key, appendConversation(pages, ev.Conversation))

	// The server owns list ordering; mark the list stale so a refetch can
	// reconcile where the new entry actually belongs.
	e.store.Invalidate(key)
	return true
}

func messagePagesAt(store cache.Store, key cache.Key) (chat.MessagePages, bool) {
	v, ok := store.Get(key)
	if !ok {
		return chat.MessagePages{}, false
	}
	pages, ok := v.(chat.MessagePages)
	return pages, ok
}

func conversationPagesAt(store cache.Store, key cache.Key) (chat.ConversationPages, bool) {
	v, ok := store.Get(key)
	if !ok {
		return chat.ConversationPages{}, false
	}
	pages, ok := v.(chat.ConversationPages)
	return pages, ok
}
