// Package api implements the request/response loaders that hydrate the query
// cache before the socket takes over. Loads write through the cache's fetch
// protocol, so an event-driven write that lands while a request is on the
// wire always wins; the stale response is simply discarded.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/redbead/chatsync/internal/cache"
	"github.com/redbead/chatsync/internal/chat"
	"github.com/redbead/chatsync/pkg/logger"
)

const defaultHTTPTimeout = 15 * time.Second

// Client loads conversation data over REST and merges it into the cache.
type Client struct {
	baseURL string
	token   string
	store   *cache.MemoryStore
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a REST loader writing into store.
func NewClient(baseURL, token string, store *cache.MemoryStore, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		store:   store,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		log:     log,
	}
}

// ListConversations fetches one page of the global conversation list and
// merges it into the cached page set.
func (c *Client) ListConversations(ctx context.Context, page int) (chat.ConversationPage, error) {
	key := cache.ConversationsKey()
	gen := c.store.BeginFetch(key)

	var result chat.ConversationPage
	path := "/v1/conversations?page=" + strconv.Itoa(page)
	if err := c.get(ctx, path, &result); err != nil {
		return chat.ConversationPage{}, err
	}

	merged := mergeConversationPage(c.currentConversations(), result)
	if !c.store.CompleteFetch(key, gen, merged) {
		// Lost the race to an event-driven write; not an error.
		c.log.Debug("conversation list fetch superseded", zap.Int("page", page))
	}
	return result, nil
}

// ListMessages fetches one page of a conversation's message list and merges
// it into the cached page set.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page int) (chat.MessagePage, error) {
	key := cache.MessagesKey(conversationID)
	gen := c.store.BeginFetch(key)

	var result chat.MessagePage
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/messages?page=" + strconv.Itoa(page)
	if err := c.get(ctx, path, &result); err != nil {
		return chat.MessagePage{}, err
	}

	merged := mergeMessagePage(c.currentMessages(conversationID), result)
	if !c.store.CompleteFetch(key, gen, merged) {
		c.log.Debug("message list fetch superseded",
			zap.String("conversationId", conversationID),
			zap.Int("page", page))
	}
	return result, nil
}

// GetConversation fetches a single conversation detail entry.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error) {
	key := cache.ConversationKey(conversationID)
	gen := c.store.BeginFetch(key)

	var result chat.Conversation
	if err := c.get(ctx, "/v1/conversations/"+url.PathEscape(conversationID), &result); err != nil {
		return chat.Conversation{}, err
	}

	if !c.store.CompleteFetch(key, gen, result) {
		c.log.Debug("conversation detail fetch superseded",
			zap.String("conversationId", conversationID))
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) currentConversations() chat.ConversationPages {
	if v, ok := c.store.Get(cache.ConversationsKey()); ok {
		if pages, ok := v.(chat.ConversationPages); ok {
			return pages
		}
	}
	return chat.ConversationPages{}
}

func (c *Client) currentMessages(conversationID string) chat.MessagePages {
	if v, ok := c.store.Get(cache.MessagesKey(conversationID)); ok {
		if pages, ok := v.(chat.MessagePages); ok {
			return pages
		}
	}
	return chat.MessagePages{}
}

// mergeConversationPage slots a fetched page into the page set by page
// number, extending the set as the observer scrolls.
func mergeConversationPage(pages chat.ConversationPages, page chat.ConversationPage) chat.ConversationPages {
	next := chat.ConversationPages{Pages: make([]chat.ConversationPage, len(pages.Pages))}
	copy(next.Pages, pages.Pages)

	for i, existing := range next.Pages {
		if existing.Meta.Page == page.Meta.Page {
			next.Pages[i] = page
			return next
		}
	}
	next.Pages = append(next.Pages, page)
	return next
}

func mergeMessagePage(pages chat.MessagePages, page chat.MessagePage) chat.MessagePages {
	next := chat.MessagePages{Pages: make([]chat.MessagePage, len(pages.Pages))}
	copy(next.Pages, pages.Pages)

	for i, existing := range next.Pages {
		if existing.Meta.Page == page.Meta.Page {
			next.Pages[i] = page
			return next
		}
	}
	next.Pages = append(next.Pages, page)
	return next
}
