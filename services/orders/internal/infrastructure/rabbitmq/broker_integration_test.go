package rabbitmq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/contracts"
)

func TestBroker_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete"),
	}
	rabbitC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer rabbitC.Terminate(ctx)

	host, err := rabbitC.Host(ctx)
	require.NoError(t, err)
	port, err := rabbitC.MappedPort(ctx, "5672")
	require.NoError(t, err)
	url := "amqp://guest:guest@" + host + ":" + port.Port() + "/"

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()

	t.Run("publish_order_created_roundtrip", func(t *testing.T) {
		ch, err := conn.Channel()
		require.NoError(t, err)
		defer ch.Close()

		require.NoError(t, ch.ExchangeDeclare("order.created", "topic", true, false, false, false, nil))
		q, err := ch.QueueDeclare("it_order_created", true, false, false, false, nil)
		require.NoError(t, err)
		require.NoError(t, ch.QueueBind(q.Name, "order.created", "order.created", false, nil))

		p, err := NewPublisher(url, "order.created", "order.created", zerolog.Nop())
		require.NoError(t, err)
		defer p.Close()

		evt := contracts.OrderCreatedEvent{
			OrderID:   "7b0a6ee2-0000-0000-0000-000000000042",
			UserID:    "user-7",
			Products:  []contracts.ProductLine{{ProductID: "sku-1", Quantity: 2}},
			Amount:    20.50,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		require.NoError(t, p.PublishOrderCreated(ctx, evt))

		assert.Eventually(t, func() bool {
			d, ok, err := ch.Get(q.Name, true)
			if err != nil || !ok {
				return false
			}
			return d.MessageId == evt.OrderID
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("retry_router_parks_message_with_header", func(t *testing.T) {
		chPub, err := conn.Channel()
		require.NoError(t, err)
		defer chPub.Close()

		router, err := NewRetryRouter(chPub, "order.processed", "order.processed", "orders_order_processed", "dlx", "dead_letter_queue", 1, zerolog.Nop())
		require.NoError(t, err)

		d := amqp.Delivery{
			RoutingKey:  "order.processed",
			ContentType: "application/json",
			Body:        []byte(`{"order_id":"x","status":"FAILED"}`),
		}
		require.NoError(t, router.PublishRetry(ctx, d, 1, assert.AnError))

		chGet, err := conn.Channel()
		require.NoError(t, err)
		defer chGet.Close()

		got, ok, err := chGet.Get("orders_order_processed_retry_1", false)
		require.NoError(t, err)
		require.True(t, ok, "message should be parked in retry queue")
		assert.EqualValues(t, 1, got.Headers["x-retry-count"])
		require.NoError(t, got.Nack(false, false)) // let TTL/dead-letter topology take over
	})

	t.Run("dlq_receives_failure_reason", func(t *testing.T) {
		chPub, err := conn.Channel()
		require.NoError(t, err)
		defer chPub.Close()

		require.NoError(t, chPub.ExchangeDeclare("dlx", "topic", true, false, false, false, nil))
		_, err = chPub.QueueDeclare("dead_letter_queue", true, false, false, false, nil)
		require.NoError(t, err)
		require.NoError(t, chPub.QueueBind("dead_letter_queue", "#", "dlx", false, nil))

		router, err := NewRetryRouter(chPub, "order.processed", "order.processed", "orders_order_processed", "dlx", "dead_letter_queue", 1, zerolog.Nop())
		require.NoError(t, err)

		d := amqp.Delivery{
			RoutingKey: "order.processed",
			Body:       []byte("not-json"),
		}
		require.NoError(t, router.PublishDLQ(ctx, d, "decode error: invalid JSON"))

		chGet, err := conn.Channel()
		require.NoError(t, err)
		defer chGet.Close()

		assert.Eventually(t, func() bool {
			got, ok, err := chGet.Get("dead_letter_queue", true)
			if err != nil || !ok {
				return false
			}
			return got.Headers["x-failure-reason"] == "decode error: invalid JSON" &&
				got.Headers["x-original-routing-key"] == "order.processed"
		}, 5*time.Second, 100*time.Millisecond)
	})
}
