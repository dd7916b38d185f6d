package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CancelInFlightDropsStaleFetch(t *testing.T) {
	s := NewMemoryStore()
	key := MessagesKey("c1")

	gen := s.BeginFetch(key)
	s.CancelInFlight(key)

	require.False(t, s.CompleteFetch(key, gen, "stale"))
	_, ok := s.Get(key)
	require.False(t, ok)
}

func TestMemoryStore_EventWriteBeatsInFlightFetch(t *testing.T) {
	s := NewMemoryStore()
	key := MessagesKey("c1")

	gen := s.BeginFetch(key)

	// An event-driven write lands while the fetch is on the wire.
	s.Set(key, "fresh")

	require.False(t, s.CompleteFetch(key, gen, "stale"))
	v, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, "fresh", v)
}

func TestMemoryStore_CompleteFetchWritesWhenCurrent(t *testing.T) {
	s := NewMemoryStore()
	key := ConversationsKey()

	gen := s.BeginFetch(key)
	require.True(t, s.CompleteFetch(key, gen, "value"))

	v, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, "value", v)
	require.False(t, s.IsStale(key))
}

func TestMemoryStore_InvalidateMarksStaleKeepsValue(t *testing.T) {
	s := NewMemoryStore()
	key := ConversationKey("c1")

	s.Set(key, "detail")
	s.Invalidate(key)

	require.True(t, s.IsStale(key))
	v, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, "detail", v)

	// A fresh Set clears the stale mark.
	s.Set(key, "detail2")
	require.False(t, s.IsStale(key))
}

func TestMemoryStore_InvalidateUnknownKeyIsNoop(t *testing.T) {
	s := NewMemoryStore()
	key := ConversationKey("missing")

	s.Invalidate(key)

	require.False(t, s.IsStale(key))
	_, ok := s.Get(key)
	require.False(t, ok)
}
