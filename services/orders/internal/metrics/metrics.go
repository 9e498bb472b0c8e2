package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orders_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)

	ordersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders accepted by the API",
		},
	)

	// Consumer metrics
	processedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_processed_events_total",
			Help: "Total number of order.processed deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// Outbox metrics
	outboxPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_outbox_published_total",
			Help: "Total number of outbox messages published to the broker",
		},
	)

	outboxPublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_outbox_publish_failures_total",
			Help: "Total number of failed outbox publish attempts",
		},
	)
)

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOrderCreated records an accepted order.
func RecordOrderCreated() {
	ordersCreatedTotal.Inc()
}

// RecordProcessedEvent records a consumed order.processed delivery.
// Outcome is one of: success, retry, dlq, dropped, requeue.
func RecordProcessedEvent(outcome string) {
	processedEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordOutboxPublished records a successful outbox relay.
func RecordOutboxPublished() {
	outboxPublishedTotal.Inc()
}

// RecordOutboxPublishFailure records a failed outbox relay attempt.
func RecordOutboxPublishFailure() {
	outboxPublishFailuresTotal.Inc()
}

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
