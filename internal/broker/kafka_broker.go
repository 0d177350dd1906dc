package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds configuration for the Kafka broker.
type KafkaConfig struct {
	Brokers       []string // list of broker addresses
	ConsumerGroup string   // consumer group ID
}

// KafkaBroker implements Broker on Apache Kafka via segmentio/kafka-go.
// Exchanges map to topics and the routing key travels as the message key, so
// consumers of the same topic can filter on the binding they care about.
type KafkaBroker struct {
	config  KafkaConfig
	writer  *kafka.Writer
	mu      sync.Mutex
	readers map[string]*kafkaSubscription
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

type kafkaSubscription struct {
	id         string
	routingKey string
	reader     *kafka.Reader
	handler    Handler
	cancel     context.CancelFunc
}

// NewKafkaBroker creates a new KafkaBroker with a shared producer and
// per-subscription consumers. Call Close() to stop them.
func NewKafkaBroker(config KafkaConfig) (*KafkaBroker, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker address is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "jobber-chat-service"
	}

	ctx, cancel := context.WithCancel(context.Background())

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	}

	return &KafkaBroker{
		config:  config,
		writer:  writer,
		readers: make(map[string]*kafkaSubscription),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Publish serializes the event to JSON and writes it to the topic named after
// the exchange, keyed by the routing key.
func (b *KafkaBroker) Publish(exchange, routingKey string, event Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker is closed")
	}
	b.mu.Unlock()

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: exchange,
		Key:   []byte(routingKey),
		Value: value,
	}

	if err := b.writer.WriteMessages(b.ctx, msg); err != nil {
		return fmt.Errorf("write to kafka: %w", err)
	}
	return nil
}

// Subscribe creates a consumer on the exchange's topic and invokes the
// handler for each message whose key matches the routing key.
func (b *KafkaBroker) Subscribe(exchange, routingKey string, handler Handler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", fmt.Errorf("broker is closed")
	}

	id := uuid.New().String()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.config.Brokers,
		Topic:    exchange,
		GroupID:  b.config.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  500 * time.Millisecond,
	})

	subCtx, subCancel := context.WithCancel(b.ctx)

	sub := &kafkaSubscription{
		id:         id,
		routingKey: routingKey,
		reader:     reader,
		handler:    handler,
		cancel:     subCancel,
	}

	b.readers[id] = sub

	go b.consumeLoop(subCtx, sub)

	return id, nil
}

// Close shuts down all consumers and the producer.
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	b.cancel()

	var firstErr error

	for _, sub := range b.readers {
		sub.cancel()
		if err := sub.reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := b.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

func (b *KafkaBroker) consumeLoop(ctx context.Context, sub *kafkaSubscription) {
	for {
		msg, err := sub.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // context cancelled, shutting down
			}
			log.Printf("broker: kafka consumer %s error: %v", sub.id, err)
			continue
		}

		if !bytes.Equal(msg.Key, []byte(sub.routingKey)) {
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("broker: kafka consumer %s: unmarshal error: %v", sub.id, err)
			continue
		}

		sub.handler(event)
	}
}
