package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redbead/chatsync/internal/cache"
	"github.com/redbead/chatsync/internal/chat"
	"github.com/redbead/chatsync/internal/wire"
	"github.com/redbead/chatsync/pkg/logger"
)

// spyStore records every mutation so tests can assert that missing cache
// entries produce zero writes.
type spyStore struct {
	inner       *cache.MemoryStore
	sets        []cache.Key
	invalidated []cache.Key
	cancelled   []cache.Key
}

func newSpyStore() *spyStore {
	return &spyStore{inner: cache.NewMemoryStore()}
}

func (s *spyStore) Get(key cache.Key) (any, bool) { return s.inner.Get(key) }

func (s *spyStore) Set(key cache.Key, value any) {
	s.sets = append(s.sets, key)
	s.inner.Set(key, value)
}

func (s *spyStore) CancelInFlight(key cache.Key) {
	s.cancelled = append(s.cancelled, key)
	s.inner.CancelInFlight(key)
}

func (s *spyStore) Invalidate(key cache.Key) {
	s.invalidated = append(s.invalidated, key)
	s.inner.Invalidate(key)
}

func seedMessages(t *testing.T, store cache.Store, conversationID string, pages ...[]chat.Message) {
	t.Helper()
	var mp chat.MessagePages
	for _, items := range pages {
		mp.Pages = append(mp.Pages, chat.MessagePage{Items: items})
	}
	store.Set(cache.MessagesKey(conversationID), mp)
}

func seedConversations(t *testing.T, store cache.Store, items ...chat.Conversation) {
	t.Helper()
	store.Set(cache.ConversationsKey(), chat.ConversationPages{
		Pages: []chat.ConversationPage{{Items: items}},
	})
}

func messagesAt(t *testing.T, store cache.Store, conversationID string) chat.MessagePages {
	t.Helper()
	v, ok := store.Get(cache.MessagesKey(conversationID))
	require.True(t, ok)
	return v.(chat.MessagePages)
}

func conversationsAt(t *testing.T, store cache.Store) chat.ConversationPages {
	t.Helper()
	v, ok := store.Get(cache.ConversationsKey())
	require.True(t, ok)
	return v.(chat.ConversationPages)
}

func listEntryCount(pages chat.ConversationPages) int {
	n := 0
	for _, p := range pages.Pages {
		n += len(p.Items)
	}
	return n
}

func msg(id, conversationID string) chat.Message {
	return chat.Message{
		ID:             id,
		ConversationID: conversationID,
		Type:           chat.MessageText,
		Sender:         chat.SenderCustomer,
		Content:        "content-" + id,
	}
}

func TestEngine_MessageCreatedAppendsToFirstPage(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())

	m1, m2 := msg("m1", "c2"), msg("m2", "c2")
	older := msg("m0", "c2")
	seedMessages(t, store, "c2", []chat.Message{m1, m2}, []chat.Message{older})

	m3 := msg("m3", "c2")
	eng.Apply(MessageCreatedEvent{wire.MessageCreated{ConversationID: "c2", Message: m3}})

	pages := messagesAt(t, store, "c2")
	require.Len(t, pages.Pages, 2)
	require.Equal(t, []chat.Message{m1, m2, m3}, pages.Pages[0].Items)
	require.Equal(t, []chat.Message{older}, pages.Pages[1].Items)
}

func TestEngine_MessageCreatedWithoutCachedListIsDropped(t *testing.T) {
	store := newSpyStore()
	eng := New(store, logger.Nop())

	eng.Apply(MessageCreatedEvent{wire.MessageCreated{ConversationID: "c9", Message: msg("m1", "c9")}})

	require.Empty(t, store.sets)
	_, ok := store.Get(cache.MessagesKey("c9"))
	require.False(t, ok)
}

func TestEngine_MessageCreatedCancelsInFlightFetchFirst(t *testing.T) {
	store := newSpyStore()
	eng := New(store, logger.Nop())
	seedMessages(t, store, "c2", []chat.Message{msg("m1", "c2")})

	gen := store.inner.BeginFetch(cache.MessagesKey("c2"))
	eng.Apply(MessageCreatedEvent{wire.MessageCreated{ConversationID: "c2", Message: msg("m2", "c2")}})

	require.Contains(t, store.cancelled, cache.MessagesKey("c2"))
	// The stale fetch must not clobber the event-driven write.
	require.False(t, store.inner.CompleteFetch(cache.MessagesKey("c2"), gen, chat.MessagePages{}))
	require.Len(t, messagesAt(t, store, "c2").Pages[0].Items, 2)
}

func TestEngine_MessageReadSetsCustomerFlag(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())
	seedMessages(t, store, "c1", []chat.Message{msg("m1", "c1")}, []chat.Message{msg("m2", "c1")})

	eng.Apply(MessageReadEvent{wire.MessageRead{
		ConversationID: "c1", MessageID: "m2", Reader: chat.SenderCustomer, ReadAt: time.Now(),
	}})

	pages := messagesAt(t, store, "c1")
	require.True(t, pages.Pages[1].Items[0].IsRead)
	require.False(t, pages.Pages[1].Items[0].IsAdminRead)
	require.False(t, pages.Pages[0].Items[0].IsRead)
}

func TestEngine_MessageReadSetsAdminFlag(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())
	seedMessages(t, store, "c1", []chat.Message{msg("m1", "c1")})

	eng.Apply(MessageReadEvent{wire.MessageRead{
		ConversationID: "c1", MessageID: "m1", Reader: chat.SenderAgent,
	}})

	got := messagesAt(t, store, "c1").Pages[0].Items[0]
	require.True(t, got.IsAdminRead)
	require.False(t, got.IsRead)
}

func TestEngine_MessageReadFlagsAreMonotonic(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())

	read := msg("m1", "c1")
	read.IsRead = true
	read.IsAdminRead = true
	seedMessages(t, store, "c1", []chat.Message{read})

	// Neither a repeat customer read nor an admin read may downgrade flags.
	eng.Apply(MessageReadEvent{wire.MessageRead{ConversationID: "c1", MessageID: "m1", Reader: chat.SenderCustomer}})
	eng.Apply(MessageReadEvent{wire.MessageRead{ConversationID: "c1", MessageID: "m1", Reader: chat.SenderBot}})

	got := messagesAt(t, store, "c1").Pages[0].Items[0]
	require.True(t, got.IsRead)
	require.True(t, got.IsAdminRead)
}

func TestEngine_MessageReadUnknownMessageIsNoop(t *testing.T) {
	store := newSpyStore()
	eng := New(store, logger.Nop())
	seedMessages(t, store, "c1", []chat.Message{msg("m1", "c1")})
	seeded := len(store.sets)

	eng.Apply(MessageReadEvent{wire.MessageRead{ConversationID: "c1", MessageID: "nope", Reader: chat.SenderCustomer}})

	require.Len(t, store.sets, seeded)
}

func TestEngine_MessageReadPatchesLastMessageSummary(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())

	last := msg("m7", "c1")
	seedConversations(t, store, chat.Conversation{ID: "c1", MessageCount: 7, LastMessage: &last})
	seedMessages(t, store, "c1", []chat.Message{last})

	eng.Apply(MessageReadEvent{wire.MessageRead{ConversationID: "c1", MessageID: "m7", Reader: chat.SenderAgent}})

	conv := conversationsAt(t, store).Pages[0].Items[0]
	require.NotNil(t, conv.LastMessage)
	require.True(t, conv.LastMessage.IsAdminRead)
	require.False(t, conv.LastMessage.IsRead)
}

func TestEngine_ConversationUpdatedRoundTrip(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())
	seedConversations(t, store, chat.Conversation{ID: "C1", Status: chat.StatusActive, MessageCount: 3})

	sentAt := time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)
	eng.Apply(ConversationUpdatedEvent{wire.ConversationUpdated{
		ConversationID: "C1", Content: "hi", SentAt: sentAt, Type: chat.MessageText, Sender: chat.SenderCustomer,
	}})

	pages := conversationsAt(t, store)
	require.Equal(t, 1, listEntryCount(pages))
	conv := pages.Pages[0].Items[0]
	require.Equal(t, 4, conv.MessageCount)
	require.NotNil(t, conv.LastMessage)
	require.Equal(t, "hi", conv.LastMessage.Content)
	require.Equal(t, sentAt, conv.LastMessage.SentAt)
}

func TestEngine_ConversationUpdatedUnknownIDSynthesizesEntry(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())
	seedConversations(t, store, chat.Conversation{ID: "C1", MessageCount: 3})

	eng.Apply(ConversationUpdatedEvent{wire.ConversationUpdated{
		ConversationID: "C2", Content: "hello", SentAt: time.Now(),
	}})

	pages := conversationsAt(t, store)
	require.Equal(t, 2, listEntryCount(pages))

	// Prepended, defaults per synthesis rules.
	created := pages.Pages[0].Items[0]
	require.Equal(t, "C2", created.ID)
	require.Equal(t, chat.StatusActive, created.Status)
	require.Equal(t, 1, created.MessageCount)
	require.Equal(t, 1, created.UnreadCount)
	require.Equal(t, 1, created.AdminUnreadCount)
	require.Equal(t, "C1", pages.Pages[0].Items[1].ID)
}

func TestEngine_ConversationUpdatedNeverDuplicates(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())
	seedConversations(t, store, chat.Conversation{ID: "C1", MessageCount: 0})

	for i := 0; i < 3; i++ {
		eng.Apply(ConversationUpdatedEvent{wire.ConversationUpdated{ConversationID: "C1", Content: "x"}})
	}

	pages := conversationsAt(t, store)
	require.Equal(t, 1, listEntryCount(pages))
	require.Equal(t, 3, pages.Pages[0].Items[0].MessageCount)
}

func TestEngine_StatusChangedPatchesListAndInvalidatesDetail(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())
	seedConversations(t, store, chat.Conversation{ID: "c1", Status: chat.StatusActive})
	store.Set(cache.ConversationKey("c1"), chat.Conversation{ID: "c1", Status: chat.StatusActive})

	eng.Apply(ConversationStatusChangedEvent{wire.ConversationStatusChanged{
		ConversationID: "c1", Status: chat.StatusClosed,
	}})

	require.Equal(t, chat.StatusClosed, conversationsAt(t, store).Pages[0].Items[0].Status)
	require.True(t, store.IsStale(cache.ConversationKey("c1")))
}

func TestEngine_StatusChangedUnknownIDStillInvalidatesDetail(t *testing.T) {
	store := newSpyStore()
	eng := New(store, logger.Nop())
	seedConversations(t, store, chat.Conversation{ID: "c1"})
	seeded := len(store.sets)

	eng.Apply(ConversationStatusChangedEvent{wire.ConversationStatusChanged{
		ConversationID: "ghost", Status: chat.StatusClosed,
	}})

	require.Len(t, store.sets, seeded)
	require.Contains(t, store.invalidated, cache.ConversationKey("ghost"))
}

func TestEngine_ConversationCreatedAppendsAndInvalidatesList(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())
	seedConversations(t, store, chat.Conversation{ID: "c1"}, chat.Conversation{ID: "c2"})

	eng.Apply(ConversationCreatedEvent{wire.ConversationCreated{
		Conversation: chat.Conversation{ID: "c3", Status: chat.StatusPending},
	}})

	pages := conversationsAt(t, store)
	require.Equal(t, 3, listEntryCount(pages))
	items := pages.Pages[0].Items
	require.Equal(t, "c3", items[len(items)-1].ID)
	require.True(t, store.IsStale(cache.ConversationsKey()))
}

func TestEngine_MissingCacheEntriesLeaveStoreUntouched(t *testing.T) {
	store := newSpyStore()
	eng := New(store, logger.Nop())

	eng.Apply(MessageCreatedEvent{wire.MessageCreated{ConversationID: "c1", Message: msg("m1", "c1")}})
	eng.Apply(MessageReadEvent{wire.MessageRead{ConversationID: "c1", MessageID: "m1"}})
	eng.Apply(ConversationUpdatedEvent{wire.ConversationUpdated{ConversationID: "c1"}})
	eng.Apply(ConversationCreatedEvent{wire.ConversationCreated{Conversation: chat.Conversation{ID: "c1"}}})

	require.Empty(t, store.sets)
	_, ok := store.Get(cache.ConversationsKey())
	require.False(t, ok)
	_, ok = store.Get(cache.MessagesKey("c1"))
	require.False(t, ok)
}

func TestEngine_ApplyRecoversFromBadCachedValue(t *testing.T) {
	store := cache.NewMemoryStore()
	eng := New(store, logger.Nop())

	// A value of the wrong type must not take down the delivery loop.
	store.Set(cache.ConversationsKey(), "not pages")

	require.NotPanics(t, func() {
		eng.Apply(ConversationUpdatedEvent{wire.ConversationUpdated{ConversationID: "c1"}})
	})
}

func TestDecodeInbound_MapsNamesToTypedEvents(t *testing.T) {
	evt, err := DecodeInbound(wire.EventMessageCreated, map[string]any{
		"conversationId": "c1",
		"message": map[string]any{
			"id":      "m1",
			"content": "hello",
			"sender":  "CUSTOMER",
			"type":    "TEXT",
		},
	})
	require.NoError(t, err)

	created, ok := evt.(MessageCreatedEvent)
	require.True(t, ok)
	require.Equal(t, "c1", created.ConversationID)
	require.Equal(t, "m1", created.Message.ID)
	require.Equal(t, chat.SenderCustomer, created.Message.Sender)

	// Presence traffic is not reconciled.
	evt, err = DecodeInbound(wire.EventUserTyping, map[string]any{"conversationId": "c1"})
	require.NoError(t, err)
	require.Nil(t, evt)
}
