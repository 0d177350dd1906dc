package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBroker implements Broker on RabbitMQ via rabbitmq/amqp091-go.
//
// The connection and publish channel are process-wide shared state: they are
// created lazily on first use, reused across publish calls, and recreated on
// the next call after a failure. The amqp091 client serializes frame writes,
// but channel (re)creation is guarded by a mutex so concurrent publishers
// never race on a half-built channel.
type AMQPBroker struct {
	url string

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	subs    map[string]*amqpSubscription
	subsSeq int
}

type amqpSubscription struct {
	id     string
	ch     *amqp.Channel
	cancel context.CancelFunc
}

// NewAMQPBroker creates an AMQPBroker for the given URL. No connection is
// established until the first publish or subscribe.
func NewAMQPBroker(url string) (*AMQPBroker, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AMQPBroker{
		url:    url,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]*amqpSubscription),
	}, nil
}

// getOrCreateChannel returns the shared publish channel, dialing the broker
// and opening a channel if none is live. Connection failures are returned to
// the caller that requested the channel.
func (b *AMQPBroker) getOrCreateChannel() (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}
	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}

	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			return nil, fmt.Errorf("amqp connect: %w", err)
		}
		b.conn = conn
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp open channel: %w", err)
	}
	b.ch = ch
	return ch, nil
}

// dropChannel forgets the shared channel if it is still the one that failed,
// so the next publish recreates it.
func (b *AMQPBroker) dropChannel(failed *amqp.Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == failed {
		b.ch = nil
	}
}

// Publish declares the direct exchange (idempotent) and publishes the event
// bound to the routing key. There is no confirm wait; at-most-once.
func (b *AMQPBroker) Publish(exchange, routingKey string, event Event) error {
	ch, err := b.getOrCreateChannel()
	if err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		b.dropChannel(ch)
		return fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = ch.PublishWithContext(b.ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   event.ID,
		Body:        body,
	})
	if err != nil {
		b.dropChannel(ch)
		return fmt.Errorf("amqp publish %s/%s: %w", exchange, routingKey, err)
	}
	return nil
}

// Subscribe binds an exclusive queue to the exchange with the routing key and
// invokes the handler for each delivery. The consumer runs in a background
// goroutine until Close() is called.
func (b *AMQPBroker) Subscribe(exchange, routingKey string, handler Handler) (string, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", fmt.Errorf("broker is closed")
	}
	b.subsSeq++
	id := fmt.Sprintf("amqp-sub-%d", b.subsSeq)
	b.mu.Unlock()

	if _, err := b.getOrCreateChannel(); err != nil {
		return "", err
	}

	// Consumers get their own channel so slow consumption never contends
	// with the publish path.
	b.mu.Lock()
	consumeCh, err := b.conn.Channel()
	b.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("amqp open consumer channel: %w", err)
	}

	if err := consumeCh.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		consumeCh.Close()
		return "", fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}

	q, err := consumeCh.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		consumeCh.Close()
		return "", fmt.Errorf("amqp declare queue: %w", err)
	}

	if err := consumeCh.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		consumeCh.Close()
		return "", fmt.Errorf("amqp bind queue: %w", err)
	}

	deliveries, err := consumeCh.Consume(q.Name, id, true, true, false, false, nil)
	if err != nil {
		consumeCh.Close()
		return "", fmt.Errorf("amqp consume: %w", err)
	}

	subCtx, subCancel := context.WithCancel(b.ctx)
	sub := &amqpSubscription{id: id, ch: consumeCh, cancel: subCancel}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	go b.consumeLoop(subCtx, sub, deliveries, handler)

	return id, nil
}

func (b *AMQPBroker) consumeLoop(ctx context.Context, sub *amqpSubscription, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal(d.Body, &event); err != nil {
				log.Printf("broker: amqp consumer %s: unmarshal error: %v", sub.id, err)
				continue
			}
			handler(event)
		}
	}
}

// Close cancels all consumers and closes the channel and connection.
func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.cancel()

	var firstErr error

	for _, sub := range b.subs {
		sub.cancel()
		if err := sub.ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if b.ch != nil && !b.ch.IsClosed() {
		if err := b.ch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
