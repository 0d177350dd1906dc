package broker

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type subscription struct {
	id      string
	handler Handler
}

// InMemoryBroker is a single-process Broker backed by Go channels. It is used
// for development and single-node deployments where no external broker is
// configured.
type InMemoryBroker struct {
	mu      sync.RWMutex
	subs    map[string][]subscription // bindingKey -> subscriptions
	closed  bool
	eventCh chan boundEvent
	done    chan struct{}
}

type boundEvent struct {
	binding string
	event   Event
}

// NewInMemoryBroker creates and starts an InMemoryBroker. The broker runs a
// background dispatch goroutine; call Close() to stop it.
func NewInMemoryBroker() *InMemoryBroker {
	b := &InMemoryBroker{
		subs:    make(map[string][]subscription),
		eventCh: make(chan boundEvent, 1024),
		done:    make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish enqueues an event for asynchronous delivery to every subscriber of
// the (exchange, routingKey) binding.
func (b *InMemoryBroker) Publish(exchange, routingKey string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	b.eventCh <- boundEvent{binding: bindingKey(exchange, routingKey), event: event}
	return nil
}

// Subscribe registers a handler for the binding and returns a subscription ID.
func (b *InMemoryBroker) Subscribe(exchange, routingKey string, handler Handler) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", fmt.Errorf("broker is closed")
	}

	id := uuid.New().String()
	key := bindingKey(exchange, routingKey)
	b.subs[key] = append(b.subs[key], subscription{id: id, handler: handler})
	return id, nil
}

// Close stops the dispatch goroutine and prevents further Publish/Subscribe
// calls. Events already queued are still delivered before Close returns.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.eventCh)
	// Release the lock before draining: dispatch read-locks per queued event
	// and would block behind a held writer.
	b.mu.Unlock()

	<-b.done
	return nil
}

// dispatch fans out published events to the matching subscribers.
func (b *InMemoryBroker) dispatch() {
	defer close(b.done)

	for be := range b.eventCh {
		b.mu.RLock()
		subs := b.subs[be.binding]
		// Copy so the lock is released before handlers run.
		handlers := make([]Handler, len(subs))
		for i, s := range subs {
			handlers[i] = s.handler
		}
		b.mu.RUnlock()

		for _, h := range handlers {
			h(be.event)
		}
	}
}
