package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	consumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_messages_consumed_total",
			Help: "Total number of order.created deliveries by outcome",
		},
		[]string{"outcome"},
	)

	retryAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "processor_retry_attempts_total",
			Help: "Total number of deliveries parked on a retry queue",
		},
	)

	dlqMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_dlq_messages_total",
			Help: "Total number of deliveries sent to the DLQ by reason",
		},
		[]string{"reason"},
	)

	idempotencyHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_idempotency_hits_total",
			Help: "Total number of duplicate deliveries dropped by the claim guard",
		},
		[]string{"kind"},
	)

	processingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "processor_processing_duration_seconds",
			Help:    "Wall-clock duration of one processing run",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
	)
)

// RecordConsumed records one handled delivery.
// Outcome is one of: success, retry, dlq, dropped, requeue.
func RecordConsumed(outcome string) {
	consumedTotal.WithLabelValues(outcome).Inc()
}

// RecordRetryAttempt records a delivery parked for a delayed retry.
func RecordRetryAttempt() {
	retryAttemptsTotal.Inc()
}

// RecordDLQ records a delivery dead-lettered with a coarse reason
// ("malformed", "max_retries").
func RecordDLQ(reason string) {
	dlqMessagesTotal.WithLabelValues(reason).Inc()
}

// RecordIdempotencyHit records a duplicate dropped by the claim guard.
// Kind is "terminal" (already finished) or "in_flight" (claim held).
func RecordIdempotencyHit(kind string) {
	idempotencyHitsTotal.WithLabelValues(kind).Inc()
}

// ObserveProcessingDuration records the wall-clock time of one Process call.
func ObserveProcessingDuration(d time.Duration) {
	processingDuration.Observe(d.Seconds())
}

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
