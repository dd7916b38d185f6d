package socket

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redbead/chatsync/pkg/logger"
)

func testConfig() Config {
	return Config{
		ServerURL:            "http://example",
		MaxReconnectAttempts: 3,
		ReconnectDelay:       5 * time.Millisecond,
		Log:                  logger.Nop(),
	}
}

func collect(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for len(out) < n {
		select {
		case v := <-ch:
			out = append(out, v)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d deliveries", len(out), n)
		}
	}
	return out
}

func TestClient_DispatchesSeriallyInRegistrationOrder(t *testing.T) {
	c := New(testConfig())
	t.Cleanup(func() { _ = c.Close() })

	got := make(chan string, 8)
	c.On("message-created", func(data map[string]any) {
		got <- "first:" + data["id"].(string)
	})
	c.On("message-created", func(data map[string]any) {
		got <- "second:" + data["id"].(string)
	})

	c.events <- inbound{name: "message-created", data: map[string]any{"id": "e1"}}
	c.events <- inbound{name: "message-created", data: map[string]any{"id": "e2"}}

	require.Equal(t,
		[]string{"first:e1", "second:e1", "first:e2", "second:e2"},
		collect(t, got, 4))
}

func TestClient_OnDisposerRemovesHandler(t *testing.T) {
	c := New(testConfig())
	t.Cleanup(func() { _ = c.Close() })

	got := make(chan string, 4)
	unsub := c.On("user-typing", func(map[string]any) { got <- "gone" })
	c.On("user-typing", func(map[string]any) { got <- "kept" })

	unsub()
	c.events <- inbound{name: "user-typing", data: nil}

	require.Equal(t, []string{"kept"}, collect(t, got, 1))
	select {
	case v := <-got:
		t.Fatalf("unexpected delivery %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_HandlerPanicDoesNotBlockDelivery(t *testing.T) {
	c := New(testConfig())
	t.Cleanup(func() { _ = c.Close() })

	got := make(chan string, 4)
	c.On("error", func(map[string]any) { panic("bad handler") })
	c.On("error", func(map[string]any) { got <- "survived" })

	c.events <- inbound{name: "error", data: nil}
	c.events <- inbound{name: "error", data: nil}

	require.Equal(t, []string{"survived", "survived"}, collect(t, got, 2))
}

func TestClient_RedialStopsAfterMaxAttempts(t *testing.T) {
	c := New(testConfig())
	t.Cleanup(func() { _ = c.Close() })

	var dials atomic.Int32
	c.dialFn = func() error {
		dials.Add(1)
		return fmt.Errorf("dial refused")
	}

	c.scheduleRedial()

	require.Eventually(t, func() bool {
		return dials.Load() == 3
	}, 2*time.Second, 5*time.Millisecond)

	// Exhausted: no further attempts.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(3), dials.Load())
}

func TestClient_RedialSkippedWhileConnected(t *testing.T) {
	c := New(testConfig())
	t.Cleanup(func() { _ = c.Close() })

	var dials atomic.Int32
	c.dialFn = func() error {
		dials.Add(1)
		return nil
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.scheduleRedial()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), dials.Load())
}

func TestClient_EmitWithoutSocketFails(t *testing.T) {
	c := New(testConfig())
	t.Cleanup(func() { _ = c.Close() })

	require.Error(t, c.Emit("send-message", map[string]any{"content": "hi"}))
	require.False(t, c.Connected())
}

func TestClient_CloseIsIdempotentAndStopsRedials(t *testing.T) {
	c := New(testConfig())

	var dials atomic.Int32
	c.dialFn = func() error {
		dials.Add(1)
		return fmt.Errorf("dial refused")
	}

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c.scheduleRedial()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), dials.Load())

	require.Error(t, c.Connect())
}

func TestClient_LifecycleCallbackDisposers(t *testing.T) {
	c := New(testConfig())
	t.Cleanup(func() { _ = c.Close() })

	unsub := c.OnConnect(func() {})
	unsub()

	c.mu.RLock()
	require.Empty(t, c.connectFns)
	c.mu.RUnlock()
}
