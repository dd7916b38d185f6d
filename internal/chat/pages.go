package chat

// PageMeta carries the pagination metadata returned by list endpoints.
type PageMeta struct {
	Page    int  `json:"page"`
	PerPage int  `json:"perPage"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// MessagePage is one fetched page of a conversation's message list.
type MessagePage struct {
	Items []Message `json:"items"`
	Meta  PageMeta  `json:"meta"`
}

// MessagePages is the cached form of an infinite-scrolled message list.
// The first page holds the most recent messages (descending page order).
type MessagePages struct {
	Pages []MessagePage `json:"pages"`
}

// ConversationPage is one fetched page of the global conversation list.
type ConversationPage struct {
	Items []Conversation `json:"items"`
	Meta  PageMeta       `json:"meta"`
}

// ConversationPages is the cached form of the global conversation list.
type ConversationPages struct {
	Pages []ConversationPage `json:"pages"`
}
