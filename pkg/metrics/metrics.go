// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal tracks inbound events by type and reconciliation outcome
	// (applied, skipped, error).
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_events_total",
			Help: "Inbound socket events by type and reconciliation outcome",
		},
		[]string{"event", "outcome"},
	)

	// EmitsDroppedTotal tracks outbound actions dropped on a dead connection.
	EmitsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_emits_dropped_total",
			Help: "Outbound actions dropped because the socket was disconnected",
		},
		[]string{"event"},
	)

	// ConnectsTotal tracks successful socket connections.
	ConnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_connects_total",
			Help: "Successful socket connections, including reconnects",
		},
	)

	// DisconnectsTotal tracks socket disconnections.
	DisconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_disconnects_total",
			Help: "Socket disconnections",
		},
	)

	// ConnectionUp reports whether the socket is currently connected.
	ConnectionUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_connection_up",
			Help: "1 when the socket is connected, 0 otherwise",
		},
	)
)

// RecordEvent records one reconciliation outcome for an inbound event.
func RecordEvent(event, outcome string) {
	EventsTotal.WithLabelValues(event, outcome).Inc()
}

// RecordDroppedEmit records an outbound action dropped while disconnected.
func RecordDroppedEmit(event string) {
	EmitsDroppedTotal.WithLabelValues(event).Inc()
}
