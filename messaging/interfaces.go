package messaging

import (
	"context"
)

// Delivery is one message as observed on the bus.
type Delivery struct {
	// Subject is the routing key the message was published under.
	Subject string

	// Data is the raw message body.
	Data []byte
}

// DeliveryHandler processes incoming deliveries. Handlers are shared
// infrastructure for every subscription on the same pattern and must stay
// fast; a slow handler stalls delivery for everything behind it.
type DeliveryHandler interface {
	Handle(ctx context.Context, delivery Delivery) error
}

// DeliveryHandlerFunc is a function adapter for DeliveryHandler.
type DeliveryHandlerFunc func(ctx context.Context, delivery Delivery) error

// Handle implements DeliveryHandler.
func (f DeliveryHandlerFunc) Handle(ctx context.Context, delivery Delivery) error {
	return f(ctx, delivery)
}

// Subscription represents one active subscription.
type Subscription interface {
	// Unsubscribe stops delivery to this subscription's handler.
	Unsubscribe() error
}

// Transport connects to the message bus. Publish is at-most-once per call:
// the transport never retries on its own, a failed publish surfaces to the
// caller immediately.
type Transport interface {
	// Publish sends data under the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for every subject matching pattern.
	Subscribe(ctx context.Context, pattern string, handler DeliveryHandler) (Subscription, error)

	// Close releases all transport resources and cancels subscriptions.
	Close() error
}
