package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventsExchange is the single topic exchange all bus traffic flows through.
// Subjects map directly onto routing keys.
const EventsExchange = "carebus.events"

// QueueSpec describes one subscriber queue bound to the events exchange.
type QueueSpec struct {
	Name       string
	BindingKey string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
}

// Topology declares exchanges, queues, and bindings on the broker.
type Topology struct {
	pool *ChannelPool
}

// NewTopology creates a topology manager over the given pool.
func NewTopology(pool *ChannelPool) *Topology {
	return &Topology{pool: pool}
}

// DeclareEventsExchange declares the shared topic exchange. Declaration is
// idempotent on the broker side.
func (t *Topology) DeclareEventsExchange(ctx context.Context) error {
	return t.pool.Execute(ctx, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(
			EventsExchange,
			"topic",
			true,  // durable
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", EventsExchange, err)
		}
		return nil
	})
}

// DeclareSubscriberQueue declares a queue and binds it to the events
// exchange under the given binding key. Returns the declared queue name,
// which matters for broker-named exclusive queues.
func (t *Topology) DeclareSubscriberQueue(ctx context.Context, spec QueueSpec) (string, error) {
	var queueName string
	err := t.pool.Execute(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare(
			spec.Name,
			spec.Durable,
			spec.AutoDelete,
			spec.Exclusive,
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", spec.Name, err)
		}
		queueName = q.Name

		if err := ch.QueueBind(q.Name, spec.BindingKey, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s to %s with key %s: %w",
				q.Name, EventsExchange, spec.BindingKey, err)
		}
		return nil
	})
	return queueName, err
}

// DeleteQueue removes a queue.
func (t *Topology) DeleteQueue(ctx context.Context, name string) error {
	return t.pool.Execute(ctx, func(ch *amqp.Channel) error {
		if _, err := ch.QueueDelete(name, false, false, false); err != nil {
			return fmt.Errorf("failed to delete queue %s: %w", name, err)
		}
		return nil
	})
}
