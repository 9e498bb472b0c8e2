package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

// GetStatus reads an order through the status cache. Cache failures fall
// back to the repository; only the repository decides not-found.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	key := cacheKeyOrder(id)

	var cached domain.Order
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.log.Warn().Err(err).Str("order_id", id.String()).Msg("status cache read failed")
	} else if ok {
		return &cached, nil
	}

	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, o, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("order_id", id.String()).Msg("status cache write failed")
	}
	return o, nil
}
