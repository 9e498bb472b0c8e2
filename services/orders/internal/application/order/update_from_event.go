package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

// UpdateStatusFromEvent applies a processor outcome to the order row.
// SUCCESS maps to COMPLETED, FAILED to FAILED, anything else means the
// processor is still working and the order goes to IN_PROGRESS.
//
// A malformed order_id is a validation error: the payload is wrong, not the
// infrastructure, so the consumer must not retry it.
func (s *Service) UpdateStatusFromEvent(ctx context.Context, orderID, externalStatus string) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return domain.ErrValidationMeta("invalid order_id format", map[string]string{
			"order_id": orderID,
		})
	}

	status := domain.StatusFromProcessor(externalStatus)

	err = s.repo.WithTx(ctx, func(tr TxRepos) error {
		_, err := tr.UpdateOrderStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, cacheKeyOrder(id)); err != nil {
		s.log.Warn().Err(err).Str("order_id", id.String()).Msg("status cache invalidation failed")
	}

	s.log.Info().
		Str("order_id", id.String()).
		Str("status", string(status)).
		Str("processor_status", externalStatus).
		Msg("order status updated from event")
	return nil
}
