package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

// --- outbox worker helpers (non-tx) ---

type outboxRow struct {
	ID         uuid.UUID
	EventType  string
	Exchange   string
	RoutingKey string
	Payload    []byte
	RetryCount int
}

// unpublishedMessages returns pending rows oldest first. Rows whose
// retry_count reached maxRetries are excluded; they stay in the table
// as a visible failure trail for operators.
func (r *Repo) unpublishedMessages(ctx context.Context, limit, maxRetries int) ([]outboxRow, error) {
	rows, err := r.db.QueryContext(ctx, selectUnpublishedSQL, limit, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%w: select unpublished: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var batch []outboxRow
	for rows.Next() {
		var item outboxRow
		if err := rows.Scan(&item.ID, &item.EventType, &item.Exchange, &item.RoutingKey, &item.Payload, &item.RetryCount); err != nil {
			return nil, fmt.Errorf("%w: scan outbox row: %v", domain.ErrRepository, err)
		}
		batch = append(batch, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate outbox rows: %v", domain.ErrRepository, err)
	}
	return batch, nil
}

func (r *Repo) markPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, markPublishedSQL, id, at.UTC()); err != nil {
		return fmt.Errorf("%w: mark published: %v", domain.ErrRepository, err)
	}
	return nil
}

func (r *Repo) incrementOutboxRetry(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, incrementOutboxRetrySQL, id); err != nil {
		return fmt.Errorf("%w: increment outbox retry: %v", domain.ErrRepository, err)
	}
	return nil
}
