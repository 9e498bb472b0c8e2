package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/contracts"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/domain"
)

const (
	// Wait window for Return / Confirm after each publish.
	publishWait = 2 * time.Second
)

// Publisher owns its own connection and publishes order.processed with
// publisher confirms. A closed connection is re-established on the next
// publish, so outcome events keep flowing after a broker restart.
type Publisher struct {
	url        string
	exchange   string
	routingKey string

	lg zerolog.Logger

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return
}

func NewPublisher(url, exchange, routingKey string, lg zerolog.Logger) (*Publisher, error) {
	p := &Publisher{
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
		lg:         lg.With().Str("component", "rabbitmq_publisher").Logger(),
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", domain.ErrConnection, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: channel: %v", domain.ErrConnection, err)
	}

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("%w: exchange declare: %v", domain.ErrConnection, err)
	}

	// enable publisher confirms
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("%w: confirm mode: %v", domain.ErrConnection, err)
	}

	p.conn = conn
	p.ch = ch
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 8))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 8))
	return nil
}

// ensureChannel redials when the previous connection or channel died.
// Caller must hold p.mu.
func (p *Publisher) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.closeLocked()
	p.lg.Warn().Msg("publisher connection lost; redialing")
	return p.connect()
}

// Ready reports whether the broker connection is currently open. The
// publisher redials lazily, so a false answer clears on the next publish.
func (p *Publisher) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// PublishOrderProcessed sends the outcome with persistent delivery,
// mandatory routing and a confirm wait. The MessageId is the order id, so
// a redelivered outcome correlates back to its order.
func (p *Publisher) PublishOrderProcessed(ctx context.Context, evt contracts.OrderProcessedEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: encode order.processed for order %s: %v", domain.ErrPublish, evt.OrderID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return fmt.Errorf("%w: order %s: %v", domain.ErrPublish, evt.OrderID, err)
	}

	// Drain notifications left over from a previous failed wait.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	err = p.ch.PublishWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:    evt.OrderID,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: order %s: %v", domain.ErrPublish, evt.OrderID, err)
	}

	if err := p.waitAckOrReturn(ctx); err != nil {
		return fmt.Errorf("%w: order %s: %v", domain.ErrPublish, evt.OrderID, err)
	}
	return nil
}

func (p *Publisher) waitAckOrReturn(ctx context.Context) error {
	timer := time.NewTimer(publishWait)
	defer timer.Stop()

	select {
	case ret := <-p.returnCh:
		return fmt.Errorf("returned: reply=%d text=%q exchange=%q rk=%q",
			ret.ReplyCode, ret.ReplyText, ret.Exchange, ret.RoutingKey)
	case conf := <-p.confirmCh:
		if !conf.Ack {
			return fmt.Errorf("nacked by broker (delivery_tag=%d)", conf.DeliveryTag)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("confirm timeout after %s", publishWait)
	case <-ctx.Done():
		return ctx.Err()
	}
}
