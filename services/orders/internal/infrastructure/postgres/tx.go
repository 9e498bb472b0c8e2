package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/application/order"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

func (r *Repo) WithTx(ctx context.Context, fn func(tr order.TxRepos) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
		ReadOnly:  false,
	})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrUnitOfWork, err)
	}

	tr := &txRepos{tx: tx}

	defer func() {
		// Safety: in case fn panics, rollback to avoid leaked tx.
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tr); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", domain.ErrUnitOfWork, err)
	}
	return nil
}

type txRepos struct {
	tx *sql.Tx
}

func (t *txRepos) CreateOrder(ctx context.Context, o *domain.Order) error {
	row := t.tx.QueryRowContext(ctx, insertOrderSQL, o.CustomerID, string(o.Status), o.Amount)
	if err := row.Scan(&o.ID, &o.CreatedAt); err != nil {
		return fmt.Errorf("%w: insert order: %v", domain.ErrRepository, err)
	}
	for _, it := range o.Items {
		if _, err := t.tx.ExecContext(ctx, insertOrderItemSQL, o.ID, it.ProductID, it.Quantity, it.Price); err != nil {
			return fmt.Errorf("%w: insert order item: %v", domain.ErrRepository, err)
		}
	}
	return nil
}

func (t *txRepos) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	row := t.tx.QueryRowContext(ctx, updateOrderStatusSQL, id, string(status))

	var o domain.Order
	var st string
	err := row.Scan(&o.ID, &o.CustomerID, &st, &o.Amount, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFoundMeta("order not found", map[string]string{"order_id": id.String()})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: update order status: %v", domain.ErrRepository, err)
	}
	o.Status = domain.OrderStatus(st)
	return &o, nil
}

func (t *txRepos) InsertOutbox(ctx context.Context, msg order.OutboxMessage) error {
	// Store JSON as text cast to jsonb for lib/pq compatibility.
	_, err := t.tx.ExecContext(ctx, insertOutboxSQL,
		msg.ID,
		msg.EventType,
		msg.Exchange,
		msg.RoutingKey,
		string(msg.Payload),
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert outbox message: %v", domain.ErrRepository, err)
	}
	return nil
}
