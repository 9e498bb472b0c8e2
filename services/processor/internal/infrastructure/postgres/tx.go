package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/application/processing"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/domain"
)

func (r *Repo) WithTx(ctx context.Context, fn func(tr processing.TxRepo) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrUnitOfWork, err)
	}

	tr := &txRepo{tx: tx}

	defer func() {
		// Safety: in case fn panics, rollback to avoid leaked tx.
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tr); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit tx: %v", domain.ErrUnitOfWork, err)
	}
	return nil
}

type txRepo struct {
	tx pgx.Tx
}

// GetByOrderID reads the processing record under FOR UPDATE, so two claims
// of the same order serialise on the row lock and the loser observes the
// winner's PROCESSING state.
func (t *txRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.OrderProcessing, error) {
	row := t.tx.QueryRow(ctx, getForUpdateSQL, orderID)

	p, err := scanProcessing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get processing by order_id: %v", domain.ErrRepository, err)
	}
	return p, nil
}

func (t *txRepo) Create(ctx context.Context, orderID uuid.UUID) (*domain.OrderProcessing, error) {
	row := t.tx.QueryRow(ctx, insertProcessingSQL, orderID, string(domain.StatusPending))

	p, err := scanProcessing(row)
	if err != nil {
		// A unique violation here means a racing delivery created the row
		// first; the caller's retry will observe it and drop.
		return nil, fmt.Errorf("%w: insert processing: %v", domain.ErrRepository, err)
	}
	return p, nil
}

func (t *txRepo) MarkProcessing(ctx context.Context, orderID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, markProcessingSQL, orderID, string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("%w: mark processing: %v", domain.ErrRepository, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFoundMeta("processing record not found", map[string]string{
			"order_id": orderID.String(),
		})
	}
	return nil
}

func (t *txRepo) MarkTerminal(ctx context.Context, orderID uuid.UUID, status domain.ProcessingStatus, errorMessage *string, processedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, markTerminalSQL, orderID, string(status), errorMessage, processedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: mark terminal: %v", domain.ErrRepository, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFoundMeta("processing record not found", map[string]string{
			"order_id": orderID.String(),
		})
	}
	return nil
}

func scanProcessing(row pgx.Row) (*domain.OrderProcessing, error) {
	var p domain.OrderProcessing
	var status string
	err := row.Scan(&p.ID, &p.OrderID, &status, &p.ErrorMessage, &p.ProcessedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.ProcessingStatus(status)
	return &p, nil
}
