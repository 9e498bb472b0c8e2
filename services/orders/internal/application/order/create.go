package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/contracts"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

type CreateCmd struct {
	UserID   string
	Amount   string
	Products []domain.OrderItem
}

// Create persists a new order and schedules its order.created event. The
// order row and the outbox row commit in one transaction: no event without
// an order, no order without a scheduled event.
func (s *Service) Create(ctx context.Context, cmd CreateCmd) (*domain.Order, error) {
	o, err := domain.NewOrder(cmd.UserID, cmd.Amount, cmd.Products)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(tr TxRepos) error {
		if err := tr.CreateOrder(ctx, o); err != nil {
			return err
		}

		products := make([]contracts.ProductLine, len(o.Items))
		for i, it := range o.Items {
			products[i] = contracts.ProductLine{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		body, err := json.Marshal(contracts.OrderCreatedEvent{
			OrderID:   o.ID.String(),
			UserID:    o.CustomerID,
			Products:  products,
			Amount:    o.AmountFloat(),
			CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return err
		}

		return tr.InsertOutbox(ctx, OutboxMessage{
			ID:         uuid.New(),
			EventType:  contracts.EventTypeOrderCreated,
			Exchange:   s.createdExchange,
			RoutingKey: s.createdRoutingKey,
			Payload:    body,
			CreatedAt:  s.clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("order_id", o.ID.String()).
		Str("customer_id", o.CustomerID).
		Msg("order created, event scheduled in outbox")
	return o, nil
}
