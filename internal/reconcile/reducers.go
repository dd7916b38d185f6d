package reconcile

import (
	"github.com/redbead/chatsync/internal/chat"
	"github.com/redbead/chatsync/internal/wire"
)

// The reducers below are pure: they take the current cached value and an
// event payload and return a full replacement. Untouched pages keep their
// backing arrays; only the pages actually modified are copied.

// appendMessage appends msg to the first page of a message list. The first
// page holds the most recent messages, so new arrivals go there.
func appendMessage(pages chat.MessagePages, msg chat.Message) chat.MessagePages {
	next := chat.MessagePages{Pages: make([]chat.MessagePage, len(pages.Pages))}
	copy(next.Pages, pages.Pages)

	if len(next.Pages) == 0 {
		next.Pages = []chat.MessagePage{{Items: []chat.Message{msg}}}
		return next
	}

	first := next.Pages[0]
	items := make([]chat.Message, 0, len(first.Items)+1)
	items = append(items, first.Items...)
	items = append(items, msg)
	first.Items = items
	next.Pages[0] = first
	return next
}

// markMessageRead locates messageID across all pages and sets the flag for
// the reader's role. Flags only ever go from false to true. The second
// return value is false when the message is not cached anywhere.
func markMessageRead(pages chat.MessagePages, messageID string, admin bool) (chat.MessagePages, bool) {
	for pi, page := range pages.Pages {
		for mi, msg := range page.Items {
			if msg.ID != messageID {
				continue
			}
			if admin {
				msg.IsAdminRead = true
			} else {
				msg.IsRead = true
			}

			next := chat.MessagePages{Pages: make([]chat.MessagePage, len(pages.Pages))}
			copy(next.Pages, pages.Pages)
			items := make([]chat.Message, len(page.Items))
			copy(items, page.Items)
			items[mi] = msg
			next.Pages[pi] = chat.MessagePage{Items: items, Meta: page.Meta}
			return next, true
		}
	}
	return pages, false
}

// patchLastMessageRead mirrors a read flag onto the conversation list's
// lastMessage summary when the read message is the conversation's last one.
func patchLastMessageRead(pages chat.ConversationPages, conversationID, messageID string, admin bool) (chat.ConversationPages, bool) {
	for pi, page := range pages.Pages {
		for ci, conv := range page.Items {
			if conv.ID != conversationID || conv.LastMessage == nil || conv.LastMessage.ID != messageID {
				continue
			}
			last := *conv.LastMessage
			if admin {
				last.IsAdminRead = true
			} else {
				last.IsRead = true
			}
			conv.LastMessage = &last
			return replaceConversation(pages, pi, ci, conv), true
		}
	}
	return pages, false
}

// bumpConversation applies a conversation-updated event: an already-listed
// conversation gets its message count incremented and its lastMessage summary
// overwritten; an unknown one is synthesized and prepended. The second return
// value is true when a new entry was created.
func bumpConversation(pages chat.ConversationPages, ev wire.ConversationUpdated) (chat.ConversationPages, bool) {
	summary := &chat.Message{
		ID:             ev.MessageID,
		ConversationID: ev.ConversationID,
		SentAt:         ev.SentAt,
		Content:        ev.Content,
		Type:           ev.Type,
		Sender:         ev.Sender,
	}

	for pi, page := range pages.Pages {
		for ci, conv := range page.Items {
			if conv.ID != ev.ConversationID {
				continue
			}
			conv.MessageCount++
			conv.LastMessage = summary
			return replaceConversation(pages, pi, ci, conv), false
		}
	}

	created := chat.Conversation{
		ID:               ev.ConversationID,
		StartedAt:        ev.SentAt,
		Status:           chat.StatusActive,
		MessageCount:     1,
		UnreadCount:      1,
		AdminUnreadCount: 1,
		LastMessage:      summary,
	}

	next := chat.ConversationPages{Pages: make([]chat.ConversationPage, len(pages.Pages))}
	copy(next.Pages, pages.Pages)
	if len(next.Pages) == 0 {
		next.Pages = []chat.ConversationPage{{Items: []chat.Conversation{created}}}
		return next, true
	}

	first := next.Pages[0]
	items := make([]chat.Conversation, 0, len(first.Items)+1)
	items = append(items, created)
	items = append(items, first.Items...)
	first.Items = items
	next.Pages[0] = first
	return next, true
}

// patchStatus rewrites only the status field of the matching entry.
func patchStatus(pages chat.ConversationPages, conversationID string, status chat.ConversationStatus) (chat.ConversationPages, bool) {
	for pi, page := range pages.Pages {
		for ci, conv := range page.Items {
			if conv.ID != conversationID {
				continue
			}
			conv.Status = status
			return replaceConversation(pages, pi, ci, conv), true
		}
	}
	return pages, false
}

// appendConversation appends a full conversation payload to the end of the
// last page. Creation events carry fresh ids, so no duplicate check is done.
func appendConversation(pages chat.ConversationPages, conv chat.Conversation) chat.ConversationPages {
	next := chat.ConversationPages{Pages: make([]chat.ConversationPage, len(pages.Pages))}
	copy(next.Pages, pages.Pages)

	if len(next.Pages) == 0 {
		next.Pages = []chat.ConversationPage{{Items: []chat.Conversation{conv}}}
		return next
	}

	li := len(next.Pages) - 1
	last := next.Pages[li]
	items := make([]chat.Conversation, 0, len(last.Items)+1)
	items = append(items, last.Items...)
	items = append(items, conv)
	last.Items = items
	next.Pages[li] = last
	return next
}

// replaceConversation copies the page at pi with the entry at ci swapped out.
func replaceConversation(pages chat.ConversationPages, pi, ci int, conv chat.Conversation) chat.ConversationPages {
	next := chat.ConversationPages{Pages: make([]chat.ConversationPage, len(pages.Pages))}
	copy(next.Pages, pages.Pages)
	page := pages.Pages[pi]
	items := make([]chat.Conversation, len(page.Items))
	copy(items, page.Items)
	items[ci] = conv
	next.Pages[pi] = chat.ConversationPage{Items: items, Meta: page.Meta}
	return next
}
