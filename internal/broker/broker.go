package broker

// Broker abstracts the exchange-based message broker used to relay chat state
// changes to other services. Implementations include AMQPBroker (RabbitMQ),
// KafkaBroker, and InMemoryBroker (single-node and tests).
type Broker interface {
	// Publish sends an event to the named direct exchange bound to the given
	// routing key. Delivery is at-most-once: there is no acknowledgment wait
	// and no retry.
	Publish(exchange, routingKey string, event Event) error

	// Subscribe registers a handler for events arriving on the exchange with
	// the given routing key. Returns a subscription ID for tracking.
	Subscribe(exchange, routingKey string, handler Handler) (string, error)

	// Close shuts down the broker, releasing connections and goroutines.
	// After Close returns, Publish and Subscribe must not be called.
	Close() error
}

// bindingKey canonicalizes an (exchange, routingKey) pair for in-process
// subscription lookup.
func bindingKey(exchange, routingKey string) string {
	return exchange + "/" + routingKey
}
