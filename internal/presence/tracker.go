// Package presence tracks ephemeral, per-conversation state derived from
// transient socket events: who is currently typing and per-message read
// receipts. Nothing here touches the durable query cache, and nothing
// survives the observing Tracker's lifetime.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/redbead/chatsync/internal/wire"
)

// EventSource is the subscription surface a Tracker consumes. On returns a
// disposer that removes the registered handler.
type EventSource interface {
	On(event string, handler func(data map[string]any)) func()
}

// Receipt is the transient read-receipt detail for one message. Each reader
// role only ever sets its own fields; a customer read never clears an
// existing admin timestamp and vice versa.
type Receipt struct {
	IsRead      bool
	IsAdminRead bool
	ReadAt      *time.Time
	AdminReadAt *time.Time
}

// Tracker observes typing and read-receipt events for one conversation.
type Tracker struct {
	conversationID string

	mu       sync.Mutex
	typing   map[string]struct{}
	receipts map[string]Receipt
	closed   bool

	unsubs []func()
}

// Track subscribes to src and starts tracking conversationID. Events for
// other conversations are discarded. Call Close to release the listeners.
func Track(src EventSource, conversationID string) *Tracker {
	t := &Tracker{
		conversationID: conversationID,
		typing:         make(map[string]struct{}),
		receipts:       make(map[string]Receipt),
	}

	t.unsubs = append(t.unsubs,
		src.On(wire.EventUserTyping, t.onTyping),
		src.On(wire.EventMessageRead, t.onMessageRead),
	)
	return t
}

func (t *Tracker) onTyping(data map[string]any) {
	var ev wire.Typing
	if err := wire.Decode(data, &ev); err != nil {
		return
	}
	if ev.ConversationID != t.conversationID || ev.ActorID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if ev.IsTyping {
		t.typing[ev.ActorID] = struct{}{}
	} else {
		delete(t.typing, ev.ActorID)
	}
}

func (t *Tracker) onMessageRead(data map[string]any) {
	var ev wire.MessageRead
	if err := wire.Decode(data, &ev); err != nil {
		return
	}
	if ev.ConversationID != t.conversationID || ev.MessageID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	r := t.receipts[ev.MessageID]
	at := ev.ReadAt
	if ev.Reader.IsAdmin() {
		r.IsAdminRead = true
		r.AdminReadAt = &at
	} else {
		r.IsRead = true
		r.ReadAt = &at
	}
	t.receipts[ev.MessageID] = r
}

// TypingActors returns the ids currently marked typing, sorted for stable
// presentation.
func (t *Tracker) TypingActors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	actors := make([]string, 0, len(t.typing))
	for id := range t.typing {
		actors = append(actors, id)
	}
	sort.Strings(actors)
	return actors
}

// Receipt returns the read-receipt detail for a message, if any.
func (t *Tracker) Receipt(messageID string) (Receipt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.receipts[messageID]
	return r, ok
}

// Receipts returns a copy of all tracked receipts keyed by message id.
func (t *Tracker) Receipts() map[string]Receipt {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Receipt, len(t.receipts))
	for id, r := range t.receipts {
		out[id] = r
	}
	return out
}

// Close removes all listeners and discards the tracked state.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.typing = make(map[string]struct{})
	t.receipts = make(map[string]Receipt)
	unsubs := t.unsubs
	t.unsubs = nil
	t.mu.Unlock()

	for _, unsub := range unsubs {
		if unsub != nil {
			unsub()
		}
	}
}
