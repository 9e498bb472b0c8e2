package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/contracts"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []contracts.OrderCreatedEvent
	err    error
}

func (f *fakePublisher) PublishOrderCreated(ctx context.Context, evt contracts.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) published() []contracts.OrderCreatedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contracts.OrderCreatedEvent(nil), f.events...)
}

func outboxRows(items ...outboxRow) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "event_type", "exchange", "routing_key", "payload", "retry_count"})
	for _, it := range items {
		rows.AddRow(it.ID.String(), it.EventType, it.Exchange, it.RoutingKey, it.Payload, it.RetryCount)
	}
	return rows
}

func TestOutboxWorker_ProcessBatch(t *testing.T) {
	payload := []byte(`{"order_id":"6b1e0d0e-0000-0000-0000-000000000001","user_id":"u1","products":[{"product_id":"p1","quantity":1}],"amount":9.99,"created_at":"2026-01-02T15:04:05Z"}`)

	t.Run("should_publish_and_mark_row", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		row := outboxRow{
			ID:         uuid.New(),
			EventType:  contracts.EventTypeOrderCreated,
			Exchange:   "order.created",
			RoutingKey: "order.created",
			Payload:    payload,
		}
		mock.ExpectQuery("SELECT (.+) FROM outbox_messages").
			WithArgs(100, 3).
			WillReturnRows(outboxRows(row))
		mock.ExpectExec("UPDATE outbox_messages SET published").
			WithArgs(row.ID.String(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		pub := &fakePublisher{}
		w := NewOutboxWorker(New(db), pub, 100, time.Second, 3, zerolog.Nop())
		w.processBatch(context.Background())

		events := pub.published()
		assert.Len(t, events, 1)
		assert.Equal(t, "u1", events[0].UserID)
		assert.InDelta(t, 9.99, events[0].Amount, 0.0001)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should_increment_retry_on_publish_failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		row := outboxRow{
			ID:         uuid.New(),
			EventType:  contracts.EventTypeOrderCreated,
			Exchange:   "order.created",
			RoutingKey: "order.created",
			Payload:    payload,
			RetryCount: 1,
		}
		mock.ExpectQuery("SELECT (.+) FROM outbox_messages").
			WithArgs(100, 3).
			WillReturnRows(outboxRows(row))
		mock.ExpectExec("UPDATE outbox_messages SET retry_count").
			WithArgs(row.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		pub := &fakePublisher{err: errors.New("broker unavailable")}
		w := NewOutboxWorker(New(db), pub, 100, time.Second, 3, zerolog.Nop())
		w.processBatch(context.Background())

		assert.Empty(t, pub.published())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should_treat_undecodable_payload_as_failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		row := outboxRow{
			ID:         uuid.New(),
			EventType:  contracts.EventTypeOrderCreated,
			Exchange:   "order.created",
			RoutingKey: "order.created",
			Payload:    []byte(`{not json`),
		}
		mock.ExpectQuery("SELECT (.+) FROM outbox_messages").
			WithArgs(100, 3).
			WillReturnRows(outboxRows(row))
		mock.ExpectExec("UPDATE outbox_messages SET retry_count").
			WithArgs(row.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		pub := &fakePublisher{}
		w := NewOutboxWorker(New(db), pub, 100, time.Second, 3, zerolog.Nop())
		w.processBatch(context.Background())

		assert.Empty(t, pub.published())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should_skip_unknown_event_types", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		row := outboxRow{
			ID:        uuid.New(),
			EventType: "order.refunded",
			Payload:   payload,
		}
		mock.ExpectQuery("SELECT (.+) FROM outbox_messages").
			WithArgs(100, 3).
			WillReturnRows(outboxRows(row))
		mock.ExpectExec("UPDATE outbox_messages SET retry_count").
			WithArgs(row.ID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		pub := &fakePublisher{}
		w := NewOutboxWorker(New(db), pub, 100, time.Second, 3, zerolog.Nop())
		w.processBatch(context.Background())

		assert.Empty(t, pub.published())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxWorker_StartStop(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// One pass on Start, then a long poll interval keeps the loop idle
	// until Stop.
	mock.ExpectQuery("SELECT (.+) FROM outbox_messages").
		WithArgs(100, 3).
		WillReturnRows(outboxRows())

	w := NewOutboxWorker(New(db), &fakePublisher{}, 100, time.Minute, 3, zerolog.Nop())
	w.Start(context.Background())
	w.Start(context.Background()) // second Start is a no-op

	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
