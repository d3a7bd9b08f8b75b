package conn

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the connection layer. Registered once on the
// default registry; every container shares them, labeled by endpoint.
var (
	metricConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "connects_total",
		Help:      "Completed service connection handshakes.",
	}, []string{"endpoint"})

	metricConnectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "connect_failures_total",
		Help:      "Failed dials or rejected handshakes.",
	}, []string{"endpoint"})

	metricActiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "active_connections",
		Help:      "Physical connections currently in the Connected state.",
	}, []string{"endpoint"})

	metricMessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "messages_sent_total",
		Help:      "Frames written to the service.",
	}, []string{"endpoint"})

	metricMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "messages_received_total",
		Help:      "Frames read from the service.",
	}, []string{"endpoint"})

	metricBytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "bytes_sent_total",
		Help:      "Encoded frame bytes written to the service.",
	}, []string{"endpoint"})

	metricBytesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "bytes_received_total",
		Help:      "Transport bytes read from the service.",
	}, []string{"endpoint"})

	metricDecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "decode_errors_total",
		Help:      "Frames that failed to decode and tore the connection down.",
	}, []string{"endpoint"})

	metricEchoRTT = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "asrs",
		Subsystem: "conn",
		Name:      "echo_rtt_seconds",
		Help:      "Round-trip time of echo pings.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
)
