// Package cache provides the client-side query cache used by the
// reconciliation engine and the REST loaders.
//
// The cache is key-addressed and holds whole query results (paginated page
// sets or single entities). Writers replace values wholesale; partial patches
// are expressed as read-transform-write cycles by the callers.
package cache

// Key addresses one cached query result.
type Key string

// Canonical key conventions. A single "conversations" prefix family is used
// for the list, the per-conversation message list, and the detail entry.
func ConversationsKey() Key { return "conversations" }

func MessagesKey(conversationID string) Key {
	return Key("conversations/" + conversationID + "/messages")
}

func ConversationKey(conversationID string) Key {
	return Key("conversations/" + conversationID)
}

// Store is the minimal cache surface the reconciliation engine depends on.
//
// CancelInFlight must guarantee that any fetch started before the call can no
// longer write its result for the key; this is what keeps a slow network
// response from clobbering an event-driven write.
type Store interface {
	// Get returns the cached value for key, if any.
	Get(key Key) (any, bool)

	// Set replaces the cached value for key and clears its stale mark.
	Set(key Key, value any)

	// CancelInFlight invalidates every fetch currently in flight for key.
	CancelInFlight(key Key)

	// Invalidate marks the key stale so observers refetch it, without
	// dropping the current value.
	Invalidate(key Key)
}
