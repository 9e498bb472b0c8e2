package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/contracts"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// OutboxMessage is the row scheduled for asynchronous publication. It is
// inserted in the same transaction as the state change it announces.
type OutboxMessage struct {
	ID         uuid.UUID
	EventType  string
	Exchange   string
	RoutingKey string
	Payload    []byte
	CreatedAt  time.Time
}

// TxRepos is the repository bundle handed to a WithTx closure. All methods
// run on the same transaction and never commit on their own.
type TxRepos interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	InsertOutbox(ctx context.Context, msg OutboxMessage) error
}

type OrderRepo interface {
	WithTx(ctx context.Context, fn func(tr TxRepos) error) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

// EventPublisher is the broker side of the outbox. The worker decodes each
// pending row and hands it to the typed method for its event type.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, evt contracts.OrderCreatedEvent) error
}

// Cache is a read cache for order lookups. Implementations must be safe to
// call with a broken backend: a miss plus an error is always acceptable.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, val any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string, dest any) (bool, error) { return false, nil }
func (NoopCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	return nil
}
func (NoopCache) Delete(ctx context.Context, keys ...string) error { return nil }
