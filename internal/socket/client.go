// Package socket owns the persistent socket.io connection to the
// conversation namespace and the outbound action emitters built on top of it.
package socket

import (
	"fmt"
	"sync"
	"time"

	socketio "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
	"go.uber.org/zap"

	"github.com/redbead/chatsync/internal/wire"
	"github.com/redbead/chatsync/pkg/logger"
	"github.com/redbead/chatsync/pkg/metrics"
)

const (
	// DefaultPath is the socket.io mount point for the conversation namespace.
	DefaultPath = "/v1/conversations"

	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = 1000 * time.Millisecond
	defaultQueueSize            = 256
)

// inboundEvents are the server-to-client event names fanned into the
// dispatch loop.
var inboundEvents = []string{
	wire.EventMessageCreated,
	wire.EventMessageRead,
	wire.EventConversationUpdated,
	wire.EventConversationStatusChanged,
	wire.EventConversationCreated,
	wire.EventUserConnected,
	wire.EventUserDisconnected,
	wire.EventUserTyping,
	wire.EventError,
}

// Config controls a Client.
type Config struct {
	// ServerURL is the base URL of the conversation server.
	ServerURL string
	// Path is the socket.io mount point. Defaults to DefaultPath.
	Path string
	// Token is the optional bearer token attached at handshake.
	Token string
	// MaxReconnectAttempts bounds automatic re-dials. Defaults to 5.
	MaxReconnectAttempts int
	// ReconnectDelay is the fixed delay between re-dials. Defaults to 1s.
	ReconnectDelay time.Duration
	// Log receives transport diagnostics. Defaults to a no-op logger.
	Log *logger.Logger
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.Log == nil {
		c.Log = logger.Nop()
	}
}

type inbound struct {
	name string
	data map[string]any
}

type subscription struct {
	id uint64
	fn func(map[string]any)
}

// Client maintains one socket.io connection to the conversation namespace.
//
// Inbound events are delivered serially through a single dispatch goroutine,
// so handlers observe same-conversation events in server-emission order.
// Reconnection is managed here rather than by the socket.io manager: a fixed
// delay between attempts, up to the configured limit, after which the client
// stays disconnected until an explicit Connect.
type Client struct {
	cfg Config
	log *logger.Logger

	mu            sync.RWMutex
	sock          *socketio.Socket
	connected     bool
	closed        bool
	attempts      int
	redialPending bool
	nextSubID     uint64
	handlers      map[string][]subscription
	connectFns    map[uint64]func()
	disconnectFns map[uint64]func(reason string)

	events    chan inbound
	stopCh    chan struct{}
	closeOnce sync.Once

	// dialFn is swapped out by tests to avoid real network dials.
	dialFn func() error
}

// New creates a Client. Call Connect to establish the connection.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	c := &Client{
		cfg:           cfg,
		log:           cfg.Log,
		handlers:      make(map[string][]subscription),
		connectFns:    make(map[uint64]func()),
		disconnectFns: make(map[uint64]func(reason string)),
		events:        make(chan inbound, defaultQueueSize),
		stopCh:        make(chan struct{}),
	}
	c.dialFn = c.dial
	go c.dispatchLoop()
	return c
}

// Connect establishes the connection. It is idempotent: calling it while a
// live connection exists is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	if c.sock != nil {
		c.mu.Unlock()
		return nil
	}
	c.attempts = 0
	c.mu.Unlock()

	return c.dialFn()
}

func (c *Client) dial() error {
	c.log.Debug("connecting to conversation socket",
		zap.String("url", c.cfg.ServerURL),
		zap.String("path", c.cfg.Path))

	opts := socketio.DefaultOptions()
	opts.SetPath(c.cfg.Path)
	// Prefer the single reliable bidirectional stream; no polling fallback.
	opts.SetTransports(types.NewSet(socketio.WebSocket))
	// Re-dials are scheduled by this client, not the socket.io manager.
	opts.SetReconnection(false)
	if c.cfg.Token != "" {
		opts.SetAuth(map[string]interface{}{
			"token": c.cfg.Token,
		})
	}

	sock, err := socketio.Connect(c.cfg.ServerURL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sock.Disconnect()
		return fmt.Errorf("client is closed")
	}
	c.sock = sock
	c.mu.Unlock()

	sock.On(types.EventName("connect"), func(args ...any) {
		c.mu.Lock()
		c.connected = true
		c.attempts = 0
		fns := snapshotFns(c.connectFns)
		c.mu.Unlock()

		metrics.ConnectsTotal.Inc()
		metrics.ConnectionUp.Set(1)
		c.log.Info("socket connected", zap.String("socketId", string(sock.Id())))
		for _, fn := range fns {
			fn()
		}
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}

		c.mu.Lock()
		wasConnected := c.connected
		c.connected = false
		fns := snapshotReasonFns(c.disconnectFns)
		c.mu.Unlock()

		if wasConnected {
			metrics.DisconnectsTotal.Inc()
		}
		metrics.ConnectionUp.Set(0)
		c.log.Warn("socket disconnected", zap.String("reason", reason))
		for _, fn := range fns {
			fn(reason)
		}
		c.scheduleRedial()
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()

		metrics.ConnectionUp.Set(0)
		if len(args) > 0 {
			c.log.Warn("socket connection error", zap.Any("error", args[0]))
		}
		c.scheduleRedial()
	})

	for _, name := range inboundEvents {
		event := name // capture for closure
		sock.On(types.EventName(event), func(args ...any) {
			var data map[string]any
			if len(args) > 0 {
				if m, ok := args[0].(map[string]any); ok {
					data = m
				}
			}
			select {
			case c.events <- inbound{name: event, data: data}:
			case <-c.stopCh:
			}
		})
	}

	return nil
}

// scheduleRedial queues one re-dial attempt after the configured delay.
// Attempts are counted across a single outage and reset on every successful
// connect; exhaustion leaves the client disconnected.
func (c *Client) scheduleRedial() {
	c.mu.Lock()
	if c.closed || c.redialPending {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.mu.Unlock()
		c.log.Warn("reconnect attempts exhausted; staying disconnected",
			zap.Int("attempts", c.cfg.MaxReconnectAttempts))
		return
	}
	c.attempts++
	c.redialPending = true
	attempt := c.attempts
	c.mu.Unlock()

	time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.redialPending = false
		if c.closed || c.connected {
			c.mu.Unlock()
			return
		}
		old := c.sock
		c.sock = nil
		c.mu.Unlock()

		if old != nil {
			old.Disconnect()
		}

		c.log.Info("reconnecting", zap.Int("attempt", attempt))
		if err := c.dialFn(); err != nil {
			c.log.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			c.scheduleRedial()
		}
	})
}

func (c *Client) dispatchLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		case ev := <-c.events:
			c.mu.RLock()
			subs := append([]subscription(nil), c.handlers[ev.name]...)
			c.mu.RUnlock()
			for _, sub := range subs {
				c.deliver(ev.name, sub.fn, ev.data)
			}
		}
	}
}

// deliver invokes one handler, isolating the loop from handler panics so a
// bad event cannot block subsequent deliveries.
func (c *Client) deliver(event string, fn func(map[string]any), data map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("event handler panicked",
				zap.String("event", event),
				zap.Any("panic", r))
		}
	}()
	fn(data)
}

// On registers a handler for an inbound event and returns a disposer that
// removes it. Handlers for the same event run in registration order.
func (c *Client) On(event string, handler func(data map[string]any)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.handlers[event] = append(c.handlers[event], subscription{id: id, fn: handler})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		subs := c.handlers[event]
		for i, sub := range subs {
			if sub.id == id {
				c.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// OnConnect registers a connection-established callback.
func (c *Client) OnConnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.connectFns[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.connectFns, id)
	}
}

// OnDisconnect registers a disconnection callback.
func (c *Client) OnDisconnect(fn func(reason string)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.disconnectFns[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.disconnectFns, id)
	}
}

// Emit sends an event to the server.
func (c *Client) Emit(event string, data map[string]any) error {
	c.mu.RLock()
	sock := c.sock
	c.mu.RUnlock()

	if sock == nil {
		return fmt.Errorf("not connected")
	}

	sock.Emit(event, data)
	return nil
}

// Connected reports whether the socket is currently connected.
func (c *Client) Connected() bool {
	c.mu.RLock()
	sock := c.sock
	connected := c.connected
	c.mu.RUnlock()

	if connected {
		return true
	}

	if sock != nil && sock.Connected() {
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		return true
	}

	return false
}

// Close tears down the connection and releases every registered listener.
// It is idempotent and must be called on every exit path of the owning
// lifecycle.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		sock := c.sock
		c.sock = nil
		c.connected = false
		c.handlers = make(map[string][]subscription)
		c.connectFns = make(map[uint64]func())
		c.disconnectFns = make(map[uint64]func(reason string))
		c.mu.Unlock()

		close(c.stopCh)
		if sock != nil {
			sock.Disconnect()
		}
		metrics.ConnectionUp.Set(0)
	})
	return nil
}

func snapshotFns(m map[uint64]func()) []func() {
	out := make([]func(), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func snapshotReasonFns(m map[uint64]func(string)) []func(string) {
	out := make([]func(string), 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}
