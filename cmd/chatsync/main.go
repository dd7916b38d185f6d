// Command chatsync opens a conversation-sync session against a redbead
// server, joins a conversation, and mirrors the real-time traffic: inbound
// messages and typing indicators are printed, stdin lines are sent as
// messages.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/redbead/chatsync/internal/config"
	"github.com/redbead/chatsync/internal/session"
	"github.com/redbead/chatsync/internal/wire"
	"github.com/redbead/chatsync/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverURL := flag.String("server", cfg.ServerURL, "conversation server base URL")
	token := flag.String("token", cfg.Token, "bearer token")
	conversationID := flag.String("conversation", "", "conversation id to join")
	metricsAddr := flag.String("metrics-addr", "", "optional listen address for /metrics")
	debug := flag.Bool("debug", cfg.Debug, "verbose logging")
	flag.Parse()

	if *conversationID == "" {
		return fmt.Errorf("-conversation is required")
	}

	var log *logger.Logger
	if *debug {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New("info")
	}
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	sess, err := session.Open(session.Config{
		ServerURL:            *serverURL,
		APIURL:               cfg.APIURL,
		Token:                *token,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		Log:                  log,
	})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	// Hydrate the cache so the reconciliation engine has lists to patch.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := sess.Loader().ListConversations(ctx, 1); err != nil {
		log.Warn("conversation list load failed", zap.Error(err))
	}
	if _, err := sess.Loader().ListMessages(ctx, *conversationID, 1); err != nil {
		log.Warn("message list load failed", zap.Error(err))
	}
	cancel()

	sess.Emitter().JoinConversation(*conversationID)
	defer sess.Emitter().LeaveConversation(*conversationID)

	tracker, err := sess.Track(*conversationID)
	if err != nil {
		return err
	}
	defer tracker.Close()

	unsub, err := sess.On(wire.EventMessageCreated, func(data map[string]any) {
		var ev wire.MessageCreated
		if decodeErr := wire.Decode(data, &ev); decodeErr != nil || ev.ConversationID != *conversationID {
			return
		}
		fmt.Printf("[%s] %s: %s\n", ev.Message.SentAt.Format("15:04:05"), ev.Message.Sender, ev.Message.Content)
		if typing := tracker.TypingActors(); len(typing) > 0 {
			fmt.Printf("typing: %s\n", strings.Join(typing, ", "))
		}
	})
	if err != nil {
		return err
	}
	defer unsub()

	fmt.Printf("joined conversation %s; type a message and press enter\n", *conversationID)

	go readLoop(sess, *conversationID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	fmt.Println("\nshutting down")
	return nil
}

func readLoop(sess *session.Session, conversationID string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		ok := sess.Emitter().SendMessage(conversationID, wire.OutboundMessage{
			Type:    "TEXT",
			Content: text,
		})
		if !ok {
			fmt.Println("(not connected; message dropped, try again)")
		}
	}
}
