// Package session owns the lifecycle of one conversation-sync session: the
// socket connection, the query cache, the reconciliation engine wiring, and
// the REST loaders. A Session is explicitly opened and must be closed on
// every exit path of its owner.
package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/redbead/chatsync/internal/api"
	"github.com/redbead/chatsync/internal/auth"
	"github.com/redbead/chatsync/internal/cache"
	"github.com/redbead/chatsync/internal/presence"
	"github.com/redbead/chatsync/internal/reconcile"
	"github.com/redbead/chatsync/internal/socket"
	"github.com/redbead/chatsync/pkg/logger"
)

// Config controls a Session.
type Config struct {
	// ServerURL is the base URL of the conversation server.
	ServerURL string
	// APIURL is the base URL for REST loads. Defaults to ServerURL.
	APIURL string
	// Path is the socket.io mount point. Defaults to socket.DefaultPath.
	Path string
	// Token is the optional bearer token.
	Token string

	// MaxReconnectAttempts and ReconnectDelay configure the socket client.
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// Store is the query cache. A fresh MemoryStore is created when nil.
	Store *cache.MemoryStore

	// Log receives diagnostics. Defaults to a no-op logger.
	Log *logger.Logger
}

// Session is an open conversation-sync session. At most one live socket
// connection exists per Session.
type Session struct {
	log    *logger.Logger
	store  *cache.MemoryStore
	engine *reconcile.Engine

	mu     sync.Mutex
	cfg    Config
	client *socket.Client
	unsubs []func()
	closed bool

	emitter *socket.Emitter
	loader  *api.Client
}

// sessionTransport routes emitter traffic to the session's current socket
// client, so the emitter stays valid across token-driven reconnects.
type sessionTransport struct {
	s *Session
}

func (t sessionTransport) Connected() bool {
	return t.s.Connected()
}

func (t sessionTransport) Emit(event string, data map[string]any) error {
	t.s.mu.Lock()
	client := t.s.client
	t.s.mu.Unlock()
	if client == nil {
		return fmt.Errorf("session closed")
	}
	return client.Emit(event, data)
}

// Open creates a Session and establishes its connection. On any failure the
// partially-built session is torn down before returning.
func Open(cfg Config) (*Session, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = cfg.ServerURL
	}
	if cfg.Log == nil {
		cfg.Log = logger.Nop()
	}
	if cfg.Store == nil {
		cfg.Store = cache.NewMemoryStore()
	}

	s := &Session{
		log:    cfg.Log,
		store:  cfg.Store,
		engine: reconcile.New(cfg.Store, cfg.Log),
		cfg:    cfg,
	}
	s.emitter = socket.NewEmitter(sessionTransport{s}, cfg.Log)

	s.inspectToken(cfg.Token)

	if err := s.attach(cfg.Token); err != nil {
		return nil, err
	}
	return s, nil
}

// attach builds a socket client for token, wires the engine, and connects.
// Callers hold no locks; attach takes s.mu itself.
func (s *Session) attach(token string) error {
	client := socket.New(socket.Config{
		ServerURL:            s.cfg.ServerURL,
		Path:                 s.cfg.Path,
		Token:                token,
		MaxReconnectAttempts: s.cfg.MaxReconnectAttempts,
		ReconnectDelay:       s.cfg.ReconnectDelay,
		Log:                  s.log,
	})
	unsubs := wireEngine(client, s.engine, s.log)

	if err := client.Connect(); err != nil {
		for _, unsub := range unsubs {
			unsub()
		}
		_ = client.Close()
		return fmt.Errorf("failed to open session: %w", err)
	}

	s.mu.Lock()
	s.cfg.Token = token
	s.client = client
	s.unsubs = unsubs
	s.loader = api.NewClient(s.cfg.APIURL, token, s.store, s.log)
	s.mu.Unlock()
	return nil
}

func (s *Session) inspectToken(token string) {
	if token == "" {
		return
	}
	claims, err := auth.ParseClaims(token)
	if err != nil {
		// Opaque tokens are fine; claims are diagnostics only.
		s.log.Debug("bearer token is not a JWT", zap.Error(err))
		return
	}
	if claims.Expired(time.Now()) {
		s.log.Warn("bearer token is expired; handshake will likely be rejected",
			zap.String("userId", claims.UserID))
		return
	}
	s.log.Info("session token parsed", zap.String("userId", claims.UserID))
}

// UpdateToken tears down the current connection and dials a fresh one with
// the new token. Presence trackers are bound to the old connection and must
// be re-created by their owners; ephemeral state never survives reconnects.
func (s *Session) UpdateToken(token string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	old := s.client
	oldUnsubs := s.unsubs
	s.client = nil
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range oldUnsubs {
		unsub()
	}
	if old != nil {
		_ = old.Close()
	}

	s.inspectToken(token)
	return s.attach(token)
}

// Emitter returns the outbound action emitters. The returned value remains
// valid for the life of the session, across token-driven reconnects.
func (s *Session) Emitter() *socket.Emitter {
	return s.emitter
}

// Store returns the query cache this session reconciles into.
func (s *Session) Store() *cache.MemoryStore {
	return s.store
}

// Loader returns the REST loader hydrating this session's cache.
func (s *Session) Loader() *api.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loader
}

// Connected reports whether the socket is currently connected.
func (s *Session) Connected() bool {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	return client != nil && client.Connected()
}

// On registers a raw inbound event handler on the current connection and
// returns its disposer. Like presence trackers, these subscriptions are
// bound to the current connection and do not survive UpdateToken.
func (s *Session) On(event string, handler func(data map[string]any)) (func(), error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("session closed")
	}
	return client.On(event, handler), nil
}

// Track starts an ephemeral presence tracker for a conversation, bound to
// the current connection. Close the tracker when the observer goes away.
func (s *Session) Track(conversationID string) (*presence.Tracker, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("session closed")
	}
	return presence.Track(client, conversationID), nil
}

// Close releases every listener and tears the connection down. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	client := s.client
	unsubs := s.unsubs
	s.client = nil
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if client != nil {
		return client.Close()
	}
	return nil
}
