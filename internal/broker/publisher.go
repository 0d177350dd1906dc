package broker

import "log"

// Publisher is the fire-and-forget publish path for chat state changes.
// Delivery is best-effort by contract: durability of the message itself lives
// in the store, the broker event is only a notification to other services.
// A failed publish is logged with its description and discarded; it never
// reaches the HTTP response.
type Publisher struct {
	broker Broker
}

func NewPublisher(b Broker) *Publisher {
	return &Publisher{broker: b}
}

// PublishDirect publishes event to the named direct exchange with the given
// routing key. It never returns an error: success logs logDescription,
// failure logs the error with enough context to diagnose.
func (p *Publisher) PublishDirect(exchange, routingKey string, event Event, logDescription string) {
	if err := p.broker.Publish(exchange, routingKey, event); err != nil {
		log.Printf("broker: publish %s/%s failed (%s): %v", exchange, routingKey, logDescription, err)
		return
	}
	log.Printf("broker: %s", logDescription)
}
