package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	gatewayConnectionsTotal  prometheus.Counter
	gatewayConnectionsActive prometheus.Gauge
	gatewayEventsTotal       *prometheus.CounterVec
	presenceOnlineUsers      prometheus.Gauge

	messagesSentTotal *prometheus.CounterVec
	reactionsTotal    *prometheus.CounterVec

	uploadRequestsTotal  *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec
	uploadLatencySeconds prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors for the API, the
// websocket gateway and uploads.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gatewayConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_connections_total",
			Help: "Total number of websocket connections accepted.",
		})

		gatewayConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Number of currently open websocket connections.",
		})

		gatewayEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_events_total",
			Help: "Total number of gateway events fanned out, by event name.",
		}, []string{"event"})

		presenceOnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presence_online_users",
			Help: "Number of users with at least one live connection.",
		})

		messagesSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total number of messages accepted into the log, by type.",
		}, []string{"type"})

		reactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "message_reactions_total",
			Help: "Total number of reaction toggles, by outcome.",
		}, []string{"action"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Total number of stored uploads, by category.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Total number of rejected uploads, by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Latency distribution for upload processing.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			gatewayConnectionsTotal, gatewayConnectionsActive, gatewayEventsTotal,
			presenceOnlineUsers, messagesSentTotal, reactionsTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySeconds,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GatewayConnectionsTotal exposes the counter for accepted connections.
func GatewayConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return gatewayConnectionsTotal
}

// GatewayConnectionsActive exposes the gauge for open connections.
func GatewayConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return gatewayConnectionsActive
}

// GatewayEventsTotal exposes the counter for fanned-out events.
func GatewayEventsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return gatewayEventsTotal
}

// PresenceOnlineUsers exposes the gauge for online users.
func PresenceOnlineUsers() prometheus.Gauge {
	RegisterMetrics()
	return presenceOnlineUsers
}

// MessagesSent exposes the counter for accepted messages.
func MessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesSentTotal
}

// ReactionsToggled exposes the counter for reaction toggles.
func ReactionsToggled() *prometheus.CounterVec {
	RegisterMetrics()
	return reactionsTotal
}

// UploadRequests exposes the counter for stored uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the counter for rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the histogram for upload processing time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}
