package session

import (
	"go.uber.org/zap"

	"github.com/redbead/chatsync/internal/reconcile"
	"github.com/redbead/chatsync/internal/wire"
	"github.com/redbead/chatsync/pkg/logger"
	"github.com/redbead/chatsync/pkg/metrics"
)

// eventRegistrar is the subset of the socket client used for wiring.
type eventRegistrar interface {
	On(event string, handler func(data map[string]any)) func()
}

// applier is the minimal engine API the wiring needs.
type applier interface {
	Apply(evt reconcile.Event)
}

// reconciledEvents are the inbound events routed to the engine. Presence
// traffic bypasses the engine entirely.
var reconciledEvents = []string{
	wire.EventMessageCreated,
	wire.EventMessageRead,
	wire.EventConversationUpdated,
	wire.EventConversationStatusChanged,
	wire.EventConversationCreated,
}

// wireEngine registers socket handlers that decode inbound payloads and feed
// them to the reconciliation engine. It returns the disposers for every
// registered handler.
func wireEngine(reg eventRegistrar, eng applier, log *logger.Logger) []func() {
	unsubs := make([]func(), 0, len(reconciledEvents)+1)

	for _, name := range reconciledEvents {
		event := name // capture for closure
		unsubs = append(unsubs, reg.On(event, func(data map[string]any) {
			evt, err := reconcile.DecodeInbound(event, data)
			if err != nil {
				metrics.RecordEvent(event, "error")
				log.Warn("dropping undecodable event",
					zap.String("event", event),
					zap.Error(err))
				return
			}
			if evt == nil {
				return
			}
			eng.Apply(evt)
		}))
	}

	unsubs = append(unsubs, reg.On(wire.EventError, func(data map[string]any) {
		log.Warn("server error event", zap.Any("payload", data))
	}))

	return unsubs
}
