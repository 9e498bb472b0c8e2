package rabbitmq

import (
	"context"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	headerRetryCount     = "x-retry-count"
	headerOriginalRK     = "x-original-routing-key"
	headerFailureReason  = "x-failure-reason"
	maxRetryDelaySeconds = 300
)

// RetryRouter republishes failed deliveries either to a per-level retry
// queue (which dead-letters back to the original exchange once its TTL
// expires) or to the dead-letter exchange. Confirms are enabled so a lost
// republish is reported to the caller instead of vanishing.
type RetryRouter struct {
	ch *amqp.Channel
	lg zerolog.Logger

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return

	exchange    string // original exchange the retry queue dead-letters into
	routingKey  string // original routing key
	retryBase   int    // seconds; doubles per attempt
	queuePrefix string

	dlx string
	dlq string

	declared map[string]bool
}

func NewRetryRouter(ch *amqp.Channel, exchange, routingKey, queuePrefix, dlx, dlq string, retryBase int, lg zerolog.Logger) (*RetryRouter, error) {
	if ch == nil {
		return nil, fmt.Errorf("nil channel")
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	if retryBase <= 0 {
		retryBase = 1
	}

	r := &RetryRouter{
		ch:          ch,
		lg:          lg.With().Str("component", "retry_router").Logger(),
		exchange:    exchange,
		routingKey:  routingKey,
		retryBase:   retryBase,
		queuePrefix: queuePrefix,
		dlx:         dlx,
		dlq:         dlq,
		declared:    make(map[string]bool),
	}

	// Must be registered AFTER Confirm.
	r.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 8))
	r.returnCh = ch.NotifyReturn(make(chan amqp.Return, 8))
	return r, nil
}

// PublishRetry parks the delivery in the retry queue for the new attempt.
// The queue is declared lazily, durable, with a TTL after which the broker
// dead-letters the message back onto the original exchange/routing key, so
// the consumer sees it again on its own queue.
func (r *RetryRouter) PublishRetry(ctx context.Context, d amqp.Delivery, newCount int, cause error) error {
	queue := fmt.Sprintf("%s_retry_%d", r.queuePrefix, newCount)
	delay := retryDelaySeconds(r.retryBase, newCount)

	if !r.declared[queue] {
		args := amqp.Table{
			"x-message-ttl":             int64(delay) * 1000,
			"x-dead-letter-exchange":    r.exchange,
			"x-dead-letter-routing-key": r.routingKey,
		}
		if _, err := r.ch.QueueDeclare(queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("retry queue declare (%s): %w", queue, err)
		}
		r.declared[queue] = true
	}

	h := copyHeaders(d.Headers)
	h[headerRetryCount] = newCount

	pub := amqp.Publishing{
		ContentType:   d.ContentType,
		Body:          d.Body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		Headers:       h,
		CorrelationId: d.CorrelationId,
		MessageId:     d.MessageId,
	}

	r.drain()
	// Default exchange routes straight to the retry queue by name.
	if err := r.ch.PublishWithContext(ctx, "", queue, true, false, pub); err != nil {
		return fmt.Errorf("publish retry: %w", err)
	}
	if err := r.waitAckOrReturn(ctx, "", queue); err != nil {
		return err
	}

	r.lg.Warn().
		Err(cause).
		Str("queue", queue).
		Int("retry_count", newCount).
		Int("delay_seconds", delay).
		Str("routing_key", d.RoutingKey).
		Msg("delivery parked for retry")
	return nil
}

// PublishDLQ parks the delivery on the dead-letter exchange with the
// failure reason attached for operators.
func (r *RetryRouter) PublishDLQ(ctx context.Context, d amqp.Delivery, reason string) error {
	h := copyHeaders(d.Headers)
	h[headerOriginalRK] = d.RoutingKey
	h[headerFailureReason] = reason

	pub := amqp.Publishing{
		ContentType:   d.ContentType,
		Body:          d.Body,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     time.Now().UTC(),
		Headers:       h,
		CorrelationId: d.CorrelationId,
		MessageId:     d.MessageId,
	}

	r.drain()
	if err := r.ch.PublishWithContext(ctx, r.dlx, r.dlq, true, false, pub); err != nil {
		return fmt.Errorf("publish dlq: %w", err)
	}
	if err := r.waitAckOrReturn(ctx, r.dlx, r.dlq); err != nil {
		return err
	}

	r.lg.Error().
		Str("reason", reason).
		Str("routing_key", d.RoutingKey).
		Msg("delivery sent to DLQ")
	return nil
}

// drain discards notifications left over from a previous failed wait.
func (r *RetryRouter) drain() {
	for {
		select {
		case <-r.confirmCh:
		case <-r.returnCh:
		default:
			return
		}
	}
}

func (r *RetryRouter) waitAckOrReturn(ctx context.Context, exchange, rk string) error {
	timer := time.NewTimer(publishWait)
	defer timer.Stop()

	select {
	case ret := <-r.returnCh:
		return fmt.Errorf("publish returned: reply=%d text=%q exchange=%q rk=%q",
			ret.ReplyCode, ret.ReplyText, ret.Exchange, ret.RoutingKey)
	case conf := <-r.confirmCh:
		if !conf.Ack {
			return fmt.Errorf("publish nacked by broker (exchange=%q rk=%q)", exchange, rk)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("publish wait timeout (no confirm/return)")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryDelaySeconds is the back-off before attempt n is redelivered: the
// base doubles per completed attempt and is capped at five minutes.
func retryDelaySeconds(base, newCount int) int {
	if base <= 0 {
		base = 1
	}
	if newCount < 1 {
		newCount = 1
	}
	d := base << (newCount - 1)
	if d <= 0 || d > maxRetryDelaySeconds {
		d = maxRetryDelaySeconds
	}
	return d
}

func getRetryCount(h amqp.Table) int {
	if h == nil {
		return 0
	}
	v, ok := h[headerRetryCount]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func copyHeaders(in amqp.Table) amqp.Table {
	out := amqp.Table{}
	for k, v := range in {
		out[k] = v
	}
	return out
}
