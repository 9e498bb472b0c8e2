package processing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/contracts"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/domain"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TxRepo is the repository view handed to a WithTx closure. All methods run
// on the same transaction and never commit on their own.
type TxRepo interface {
	// GetByOrderID returns nil when no record exists. The read takes a row
	// lock, so concurrent claims of the same order serialise on it.
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.OrderProcessing, error)
	// Create inserts a PENDING record. The unique index on order_id rejects
	// a second insert, which is how racing first deliveries lose the claim.
	Create(ctx context.Context, orderID uuid.UUID) (*domain.OrderProcessing, error)
	MarkProcessing(ctx context.Context, orderID uuid.UUID) error
	MarkTerminal(ctx context.Context, orderID uuid.UUID, status domain.ProcessingStatus, errorMessage *string, processedAt time.Time) error
}

type ProcessingRepo interface {
	WithTx(ctx context.Context, fn func(tr TxRepo) error) error
	// ResetStuck flips PROCESSING rows last touched before the cutoff back
	// to PENDING and returns the order ids that were reset.
	ResetStuck(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// EventPublisher carries the processing outcome to the broker.
type EventPublisher interface {
	PublishOrderProcessed(ctx context.Context, evt contracts.OrderProcessedEvent) error
}

// Worker performs one processing run and reports whether it succeeded.
type Worker interface {
	Work(ctx context.Context) bool
}
