package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, getOrderSQL, id)

	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.CustomerID, &status, &o.Amount, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFoundMeta("order not found", map[string]string{"order_id": id.String()})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %v", domain.ErrRepository, err)
	}
	o.Status = domain.OrderStatus(status)

	items, err := r.getOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repo) getOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: get order items: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("%w: scan order item: %v", domain.ErrRepository, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate order items: %v", domain.ErrRepository, err)
	}
	return items, nil
}
