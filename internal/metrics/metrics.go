package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session / ingestion metrics
var (
	// SessionsActive tracks the number of stream sessions currently ingesting
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_sessions_active",
			Help: "Number of stream sessions currently ingesting",
		},
	)

	// SessionsStartedTotal tracks sessions created since process start
	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_sessions_started_total",
			Help: "Stream sessions created since process start",
		},
	)

	// SessionsOfflineTotal tracks terminal offline transitions by cause
	SessionsOfflineTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_sessions_offline_total",
			Help: "Terminal offline transitions by cause",
		},
		[]string{"cause"},
	)

	// ExtractionTicksTotal tracks extraction attempts by status
	ExtractionTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_extraction_ticks_total",
			Help: "Extraction ticks by status (ok/error)",
		},
		[]string{"status"},
	)

	// ExtractionDuration tracks one full chat-pane extraction in seconds
	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_extraction_duration_seconds",
			Help:    "Duration of one chat pane extraction in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// MessagesDeliveredTotal tracks messages that survived dedup and were emitted
	MessagesDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_messages_delivered_total",
			Help: "Messages that survived dedup and were emitted in delivery batches",
		},
	)

	// MessagesDedupedTotal tracks records suppressed by the fingerprint cache
	MessagesDedupedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_messages_deduped_total",
			Help: "Records suppressed as duplicates by the fingerprint cache",
		},
	)

	// RecordsDroppedTotal tracks structurally invalid records dropped by the normalizer
	RecordsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_records_dropped_total",
			Help: "Structurally invalid raw records dropped by the normalizer",
		},
	)

	// SessionCircuitOpensTotal tracks sessions escalated to offline after persistent failures
	SessionCircuitOpensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_session_circuit_opens_total",
			Help: "Sessions escalated to offline after persistent extraction failures",
		},
	)
)

// Broadcaster metrics
var (
	// BroadcasterConnectedClients tracks connected WebSocket clients across all streams
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients_total",
			Help: "Connected WebSocket clients across all streams",
		},
	)

	// BroadcasterStreamsActive tracks streams with at least one subscriber
	BroadcasterStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_streams_active",
			Help: "Streams with at least one subscribed client",
		},
	)

	// BroadcasterBatchesTotal tracks delivery batches fanned out
	BroadcasterBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_batches_total",
			Help: "Delivery batches fanned out to subscribers",
		},
	)

	// BroadcasterSlowClientsEvicted tracks slow clients dropped due to a full send buffer
	BroadcasterSlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_slow_clients_evicted_total",
			Help: "Slow WebSocket clients evicted due to buffer full",
		},
	)

	// BroadcasterOfflineNoticesTotal tracks terminal notices pushed to clients
	BroadcasterOfflineNoticesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_offline_notices_total",
			Help: "Terminal offline notices pushed to clients",
		},
	)

	// BroadcasterCommandChannelDepth tracks current command channel depth
	BroadcasterCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_command_channel_depth",
			Help: "Current command channel depth",
		},
	)

	// BroadcasterPanicsTotal tracks broadcaster panic recoveries
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_panics_total",
			Help: "Broadcaster panic recoveries",
		},
	)

	// BroadcasterStopTimeoutsTotal tracks broadcaster stops that exceeded timeout
	BroadcasterStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_stop_timeouts_total",
			Help: "Broadcaster stops that exceeded timeout",
		},
	)
)

// WebSocket transport metrics
var (
	// WebSocketMessageSendDuration tracks time to write one frame to a client
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "Time to write one frame to a client in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// WebSocketPingFailures tracks keepalive pings that failed to send
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Keepalive pings that failed to send",
		},
	)

	// WebSocketRejectedConnections tracks connections rejected by limits, by reason
	WebSocketRejectedConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_rejected_connections_total",
			Help: "Connections rejected before upgrade, by reason",
		},
		[]string{"reason"},
	)
)

// Resolver metrics
var (
	// ResolveLookupsTotal tracks username-to-stream-id lookups by outcome
	ResolveLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_lookups_total",
			Help: "Username to stream id lookups by outcome (hit/miss/error)",
		},
		[]string{"outcome"},
	)
)
