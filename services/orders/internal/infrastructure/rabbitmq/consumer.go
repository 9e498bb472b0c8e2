package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/contracts"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/metrics"
)

// StatusUpdater is the app-layer contract the consumer calls for each
// order.processed delivery.
type StatusUpdater interface {
	UpdateStatusFromEvent(ctx context.Context, orderID, externalStatus string) error
}

// Router is the republish contract used by the consumer. It is an interface
// so unit tests can inject a fake without real AMQP channels.
type Router interface {
	PublishRetry(ctx context.Context, d amqp.Delivery, newCount int, cause error) error
	PublishDLQ(ctx context.Context, d amqp.Delivery, reason string) error
}

type ConsumerConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	Queue      string
	DLX        string
	DLQ        string
	Prefetch   int
	Tag        string
	MaxRetries int
	RetryBase  int
}

// Consumer subscribes to order.processed and applies the outcome to the
// order row. The supervisor loop reconnects with doubling backoff when the
// broker connection drops.
type Consumer struct {
	cfg     ConsumerConfig
	handler StatusUpdater
	lg      zerolog.Logger

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}

	conn      *amqp.Connection
	chConsume *amqp.Channel
	chPublish *amqp.Channel

	deliveries <-chan amqp.Delivery
	router     Router
}

func NewConsumer(cfg ConsumerConfig, h StatusUpdater, lg zerolog.Logger) *Consumer {
	return &Consumer{
		cfg:     cfg,
		handler: h,
		lg:      lg.With().Str("component", "rabbitmq_consumer").Logger(),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if c.handler == nil {
		return fmt.Errorf("nil handler")
	}

	c.doneCh = make(chan struct{})
	c.running = true
	go c.run(ctx)
	return nil
}

func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	doneCh := c.doneCh
	c.running = false
	c.mu.Unlock()

	c.closeConn()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		doneCh := c.doneCh
		c.doneCh = nil
		c.running = false
		c.mu.Unlock()

		if doneCh != nil {
			close(doneCh)
		}
	}()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consumer supervisor exiting (ctx cancelled)")
			return
		default:
		}

		if !c.isRunning() {
			c.lg.Info().Msg("consumer supervisor exiting (stopped)")
			return
		}

		if err := c.connectAndDeclare(); err != nil {
			if isPreconditionFailed(err) {
				c.lg.Error().Err(err).Msg("FATAL: topology precondition failed; delete the conflicting MQ resources and restart")
				return
			}

			c.lg.Error().Err(err).Dur("backoff", backoff).Msg("connectAndDeclare failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 1 * time.Second
		c.consumeLoop(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}

		c.lg.Warn().Dur("backoff", backoff).Msg("deliveries closed; reconnecting")
		c.closeConn()

		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (c *Consumer) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Consumer) connectAndDeclare() error {
	c.closeConn()

	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", domain.ErrConnection, err)
	}

	chConsume, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("consume channel: %w", err)
	}

	chPublish, err := conn.Channel()
	if err != nil {
		_ = chConsume.Close()
		_ = conn.Close()
		return fmt.Errorf("publish channel: %w", err)
	}

	// ---- Exchanges ----
	if err := chConsume.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("main exchange declare: %w", err)
	}
	if err := chConsume.ExchangeDeclare(c.cfg.DLX, "topic", true, false, false, false, nil); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("dlx declare: %w", err)
	}

	// ---- Queues ----
	if _, err := chConsume.QueueDeclare(c.cfg.DLQ, true, false, false, false, nil); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("dlq declare: %w", err)
	}
	if err := chConsume.QueueBind(c.cfg.DLQ, "#", c.cfg.DLX, false, nil); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("dlq bind: %w", err)
	}

	mainArgs := amqp.Table{
		"x-dead-letter-exchange":    c.cfg.DLX,
		"x-dead-letter-routing-key": c.cfg.DLQ,
	}
	if _, err := chConsume.QueueDeclare(c.cfg.Queue, true, false, false, false, mainArgs); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("main queue declare: %w", err)
	}
	if err := chConsume.QueueBind(c.cfg.Queue, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("main queue bind: %w", err)
	}

	if c.cfg.Prefetch > 0 {
		if err := chConsume.Qos(c.cfg.Prefetch, 0, false); err != nil {
			c.closeAll(conn, chConsume, chPublish)
			return fmt.Errorf("qos: %w", err)
		}
	}

	dlv, err := chConsume.Consume(c.cfg.Queue, c.cfg.Tag, false, false, false, false, nil)
	if err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("%w: consume: %v", domain.ErrSubscription, err)
	}

	router, err := NewRetryRouter(
		chPublish,
		c.cfg.Exchange,
		c.cfg.RoutingKey,
		strings.TrimSuffix(c.cfg.Queue, "_queue"),
		c.cfg.DLX,
		c.cfg.DLQ,
		c.cfg.RetryBase,
		c.lg,
	)
	if err != nil {
		c.closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("retry router: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.chConsume = chConsume
	c.chPublish = chPublish
	c.deliveries = dlv
	c.router = router
	c.mu.Unlock()

	c.lg.Info().
		Str("exchange", c.cfg.Exchange).
		Str("queue", c.cfg.Queue).
		Str("routing_key", c.cfg.RoutingKey).
		Int("prefetch", c.cfg.Prefetch).
		Msg("rabbitmq consumer ready")

	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	// Capture once: Stop swaps the field to nil, but the amqp channel
	// itself is closed by the broker teardown, which ends the loop.
	deliveries := c.currentDeliveries()
	if deliveries == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			c.lg.Info().Msg("consume loop context cancelled")
			return

		case d, ok := <-deliveries:
			if !ok {
				c.lg.Warn().Msg("deliveries channel closed")
				return
			}

			start := time.Now()
			err := c.handleDelivery(ctx, d)

			if err == nil {
				_ = d.Ack(false)
				c.lg.Info().Str("routing_key", d.RoutingKey).Dur("took", time.Since(start)).Msg("message processed")
				continue
			}

			var rerr *requeueError
			if errors.As(err, &rerr) {
				_ = d.Nack(false, true)
				metrics.RecordProcessedEvent("requeue")
				c.lg.Warn().Err(err).Str("routing_key", d.RoutingKey).Msg("handle failed; requeue=true")
				continue
			}

			_ = d.Nack(false, false)
			c.lg.Error().Err(err).Str("routing_key", d.RoutingKey).Msg("handle failed; nack requeue=false (queue DLX catches it)")
		}
	}
}

func (c *Consumer) currentDeliveries() <-chan amqp.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deliveries
}

func (c *Consumer) currentRouter() Router {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	log := c.lg.With().Str("routing_key", d.RoutingKey).Logger()

	var evt contracts.OrderProcessedEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// Wrong field type is an application bug, not a poison
			// payload: drop without retry or DLQ.
			metrics.RecordProcessedEvent("dropped")
			log.Warn().Err(err).Msg("order.processed field has wrong type; dropping")
			return nil
		}
		return c.toDLQ(ctx, d, fmt.Sprintf("decode error: %v", err))
	}
	if strings.TrimSpace(evt.OrderID) == "" || strings.TrimSpace(evt.Status) == "" {
		metrics.RecordProcessedEvent("dropped")
		log.Warn().Msg("order.processed missing required fields; dropping")
		return nil
	}

	err := c.handler.UpdateStatusFromEvent(ctx, evt.OrderID, evt.Status)
	if err == nil {
		metrics.RecordProcessedEvent("success")
		return nil
	}
	if domain.IsValidation(err) {
		metrics.RecordProcessedEvent("dropped")
		log.Warn().Err(err).Str("order_id", evt.OrderID).Msg("validation failure; dropping")
		return nil
	}
	return c.onHandlerError(ctx, d, err)
}

func (c *Consumer) onHandlerError(ctx context.Context, d amqp.Delivery, cause error) error {
	count := getRetryCount(d.Headers)
	if count >= c.cfg.MaxRetries {
		return c.toDLQ(ctx, d, fmt.Sprintf("max retries exceeded: %v", cause))
	}

	router := c.currentRouter()
	if router == nil {
		return requeue(fmt.Errorf("nil retry router"))
	}
	if pubErr := router.PublishRetry(ctx, d, count+1, cause); pubErr != nil {
		return requeue(fmt.Errorf("%w: republish retry failed: %v", domain.ErrConsume, pubErr))
	}
	metrics.RecordProcessedEvent("retry")
	return nil
}

func (c *Consumer) toDLQ(ctx context.Context, d amqp.Delivery, reason string) error {
	router := c.currentRouter()
	if router == nil {
		return requeue(fmt.Errorf("nil retry router"))
	}
	if pubErr := router.PublishDLQ(ctx, d, reason); pubErr != nil {
		return requeue(fmt.Errorf("%w: republish dlq failed: %v", domain.ErrConsume, pubErr))
	}
	metrics.RecordProcessedEvent("dlq")
	return nil
}

type requeueError struct {
	err error
}

func (e *requeueError) Error() string { return e.err.Error() }
func (e *requeueError) Unwrap() error { return e.err }

func requeue(err error) error { return &requeueError{err: err} }

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "PRECONDITION_FAILED") || strings.Contains(msg, "INEQUIVALENT ARG")
}

func (c *Consumer) closeAll(conn *amqp.Connection, a, b *amqp.Channel) {
	if b != nil {
		_ = b.Close()
	}
	if a != nil {
		_ = a.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Consumer) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chPublish != nil {
		_ = c.chPublish.Close()
		c.chPublish = nil
	}
	if c.chConsume != nil {
		_ = c.chConsume.Close()
		c.chConsume = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	c.deliveries = nil
	c.router = nil
}
