// Package config loads client configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// ServerURL is the base URL of the conversation server.
	ServerURL string
	// APIURL is the base URL for REST loads. Defaults to ServerURL.
	APIURL string
	// Token is the bearer token attached at the socket handshake and on
	// REST requests. Optional; anonymous sessions are allowed.
	Token string

	// MaxReconnectAttempts bounds automatic socket re-dials.
	MaxReconnectAttempts int
	// ReconnectDelay is the fixed delay between re-dials.
	ReconnectDelay time.Duration

	// Debug enables verbose logging.
	Debug bool
}

// Load loads configuration from environment and defaults.
func Load() (*Config, error) {
	serverURL := os.Getenv("CHATSYNC_SERVER_URL")
	if serverURL == "" {
		serverURL = "https://api.redbead.app"
	}

	apiURL := os.Getenv("CHATSYNC_API_URL")
	if apiURL == "" {
		apiURL = serverURL
	}

	attempts := 5
	if raw := os.Getenv("CHATSYNC_RECONNECT_ATTEMPTS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CHATSYNC_RECONNECT_ATTEMPTS %q", raw)
		}
		attempts = n
	}

	delay := 1000 * time.Millisecond
	if raw := os.Getenv("CHATSYNC_RECONNECT_DELAY_MS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CHATSYNC_RECONNECT_DELAY_MS %q", raw)
		}
		delay = time.Duration(n) * time.Millisecond
	}

	debug := os.Getenv("CHATSYNC_DEBUG") == "true" || os.Getenv("CHATSYNC_DEBUG") == "1"

	return &Config{
		ServerURL:            serverURL,
		APIURL:               apiURL,
		Token:                os.Getenv("CHATSYNC_TOKEN"),
		MaxReconnectAttempts: attempts,
		ReconnectDelay:       delay,
		Debug:                debug,
	}, nil
}
