package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/application/order"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/contracts"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/metrics"
)

const (
	outboxPublishTimeout = 5 * time.Second
	outboxUpdateTimeout  = 3 * time.Second
)

// OutboxWorker polls outbox_messages and relays pending rows to the broker.
// Run a single replica per database: the poller does not claim rows, so two
// concurrent workers would duplicate publishes (consumers are idempotent,
// but there is no point inviting it).
type OutboxWorker struct {
	repo *Repo
	pub  order.EventPublisher

	batchSize    int
	pollInterval time.Duration
	maxRetries   int

	log zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewOutboxWorker(repo *Repo, pub order.EventPublisher, batchSize int, pollInterval time.Duration, maxRetries int, log zerolog.Logger) *OutboxWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &OutboxWorker{
		repo:         repo,
		pub:          pub,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		maxRetries:   maxRetries,
		log:          log.With().Str("component", "outbox_worker").Logger(),
	}
}

// Start launches the polling loop. Calling Start on a running worker logs
// a warning and returns.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.log.Warn().Msg("outbox worker already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.run(runCtx)
	w.log.Info().
		Int("batch_size", w.batchSize).
		Dur("poll_interval", w.pollInterval).
		Int("max_retries", w.maxRetries).
		Msg("outbox worker started")
}

// Stop cancels the loop and waits for the in-flight batch item to settle.
func (w *OutboxWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.log.Info().Msg("outbox worker stopped")
}

func (w *OutboxWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.processBatch(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) processBatch(ctx context.Context) {
	batch, err := w.repo.unpublishedMessages(ctx, w.batchSize, w.maxRetries)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("failed to fetch unpublished outbox messages")
		}
		return
	}
	if len(batch) == 0 {
		return
	}
	w.log.Info().Int("count", len(batch)).Msg("found unpublished outbox messages")

	for _, item := range batch {
		if err := w.publishItem(item); err != nil {
			w.failItem(item, err)
		} else {
			w.markItemPublished(item)
		}
		// Let the current message settle, then honor cancellation
		// between rows. Remaining rows wait for the next run.
		if ctx.Err() != nil {
			return
		}
	}
}

// publishItem decodes the stored payload and republishes it through the
// typed publisher. Publish uses its own timeout so a worker shutdown does
// not abandon a message that is already on the wire.
func (w *OutboxWorker) publishItem(item outboxRow) error {
	pubCtx, cancel := context.WithTimeout(context.Background(), outboxPublishTimeout)
	defer cancel()

	switch item.EventType {
	case contracts.EventTypeOrderCreated:
		var evt contracts.OrderCreatedEvent
		if err := json.Unmarshal(item.Payload, &evt); err != nil {
			return fmt.Errorf("decode %s payload: %w", item.EventType, err)
		}
		return w.pub.PublishOrderCreated(pubCtx, evt)
	default:
		return fmt.Errorf("unknown event type %q", item.EventType)
	}
}

func (w *OutboxWorker) markItemPublished(item outboxRow) {
	resCtx, cancel := context.WithTimeout(context.Background(), outboxUpdateTimeout)
	defer cancel()

	metrics.RecordOutboxPublished()
	if err := w.repo.markPublished(resCtx, item.ID, time.Now()); err != nil {
		// The row will be re-published on the next pass; consumers
		// must treat the duplicate as already processed.
		w.log.Error().Err(err).
			Str("message_id", item.ID.String()).
			Msg("published outbox message but failed to mark it")
		return
	}
	w.log.Info().
		Str("message_id", item.ID.String()).
		Str("event_type", item.EventType).
		Str("routing_key", item.RoutingKey).
		Msg("outbox message published")
}

func (w *OutboxWorker) failItem(item outboxRow, pubErr error) {
	metrics.RecordOutboxPublishFailure()

	resCtx, cancel := context.WithTimeout(context.Background(), outboxUpdateTimeout)
	defer cancel()

	if err := w.repo.incrementOutboxRetry(resCtx, item.ID); err != nil {
		w.log.Error().Err(err).
			Str("message_id", item.ID.String()).
			Msg("failed to increment outbox retry count")
		return
	}

	newCount := item.RetryCount + 1
	if newCount >= w.maxRetries {
		w.log.Error().Err(pubErr).
			Str("message_id", item.ID.String()).
			Str("event_type", item.EventType).
			Int("retry_count", newCount).
			Msg("outbox message exhausted retries; left unpublished for operators")
		return
	}
	w.log.Warn().Err(pubErr).
		Str("message_id", item.ID.String()).
		Str("event_type", item.EventType).
		Int("retry_count", newCount).
		Msg("failed to publish outbox message")
}
