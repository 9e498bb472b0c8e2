package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/domain"
)

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ResetStuck recovers rows stranded in PROCESSING by a crash: anything not
// touched since the cutoff goes back to PENDING so the next delivery can
// claim it. Terminal rows are never touched.
func (r *Repo) ResetStuck(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, resetStuckSQL, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: reset stuck processing: %v", domain.ErrRepository, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan reset order_id: %v", domain.ErrRepository, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reset stuck processing: %v", domain.ErrRepository, err)
	}
	return ids, nil
}
