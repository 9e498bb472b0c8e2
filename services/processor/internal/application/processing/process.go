package processing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/contracts"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/domain"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/metrics"
)

// settleTimeout bounds the terminal transition and the outcome publish once
// the work is done. They run on a background-derived context, so a shutdown
// lets the in-flight run settle instead of stranding a PROCESSING row.
const settleTimeout = 10 * time.Second

// Process handles one order.created delivery. At-least-once delivery comes
// in, effectively-once state transitions come out:
//
//  1. Claim the order in its own transaction: an existing terminal record
//     means the message was already handled (drop), an existing PROCESSING
//     record means another delivery is in flight (drop), otherwise the
//     record moves to PROCESSING and the claim commits. No transaction is
//     held while the work runs.
//  2. Run the work, then commit SUCCESS or FAILED.
//  3. Publish order.processed strictly after that commit, so no outcome
//     event can exist without its terminal row.
//
// Any failure after the claim persists FAILED best-effort, publishes the
// failure outcome best-effort, and surfaces a processing error so the
// broker-level retry fires on a known-bad state.
func (s *Service) Process(ctx context.Context, evt contracts.OrderCreatedEvent) error {
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return domain.ErrValidationMeta("invalid order_id format", map[string]string{
			"order_id": evt.OrderID,
		})
	}

	log := s.log.With().Str("order_id", orderID.String()).Logger()

	claimed := false
	err = s.repo.WithTx(ctx, func(tr TxRepo) error {
		existing, err := tr.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status.IsTerminal() {
			metrics.RecordIdempotencyHit("terminal")
			log.Info().Str("status", string(existing.Status)).Msg("order already processed; duplicate dropped")
			return nil
		}
		if existing != nil && existing.Status == domain.StatusProcessing {
			metrics.RecordIdempotencyHit("in_flight")
			log.Warn().Msg("order is already being processed; possible duplicate message")
			return nil
		}
		if existing == nil {
			if _, err := tr.Create(ctx, orderID); err != nil {
				return err
			}
		}
		if err := tr.MarkProcessing(ctx, orderID); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	success := s.work.Work(ctx)

	setCtx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	status := domain.StatusSuccess
	var errorMessage *string
	if !success {
		status = domain.StatusFailed
		msg := simulatedFailureMessage
		errorMessage = &msg
	}
	processedAt := s.clock.Now().UTC()

	err = s.repo.WithTx(setCtx, func(tr TxRepo) error {
		return tr.MarkTerminal(setCtx, orderID, status, errorMessage, processedAt)
	})
	if err != nil {
		return s.failAfter(setCtx, orderID, err, log)
	}

	if success {
		log.Info().Msg("order processed successfully")
	} else {
		log.Warn().Str("error", *errorMessage).Msg("order processing failed")
	}

	out := contracts.OrderProcessedEvent{
		OrderID:      orderID.String(),
		Status:       string(status),
		ErrorMessage: errorMessage,
		ProcessedAt:  processedAt.Format(time.RFC3339Nano),
	}
	if err := s.pub.PublishOrderProcessed(setCtx, out); err != nil {
		return s.failAfter(setCtx, orderID, err, log)
	}
	return nil
}

// failAfter is the post-claim failure path: persist FAILED, announce the
// failure, both best-effort, then surface the cause as a processing error.
// On the retry delivery the record is terminal, so the duplicate guard
// resolves it.
func (s *Service) failAfter(ctx context.Context, orderID uuid.UUID, cause error, log zerolog.Logger) error {
	log.Error().Err(cause).Msg("processing failed after claim")

	msg := cause.Error()
	processedAt := s.clock.Now().UTC()

	err := s.repo.WithTx(ctx, func(tr TxRepo) error {
		return tr.MarkTerminal(ctx, orderID, domain.StatusFailed, &msg, processedAt)
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to persist FAILED state")
	}

	out := contracts.OrderProcessedEvent{
		OrderID:      orderID.String(),
		Status:       string(domain.StatusFailed),
		ErrorMessage: &msg,
		ProcessedAt:  processedAt.Format(time.RFC3339Nano),
	}
	if err := s.pub.PublishOrderProcessed(ctx, out); err != nil {
		log.Warn().Err(err).Msg("failed to publish failure outcome")
	}

	return domain.ErrProcessingMeta("order processing failed", map[string]string{
		"order_id": orderID.String(),
		"cause":    cause.Error(),
	})
}
