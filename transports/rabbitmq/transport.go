// Package rabbitmq implements messaging.Transport over a RabbitMQ topic
// exchange. Subjects become routing keys and subject patterns become AMQP
// binding keys, so the rest of the codebase stays broker-agnostic.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/carebus/carebus-go/internal/rabbitmq"
	"github.com/carebus/carebus-go/messaging"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Transport is the production messaging.Transport.
type Transport struct {
	manager   *rabbitmq.ConnectionManager
	pool      *rabbitmq.ChannelPool
	publisher *rabbitmq.ConfirmPublisher
	consumer  *rabbitmq.Consumer
	topology  *rabbitmq.Topology
	logger    *slog.Logger

	mu     sync.Mutex
	subs   map[string]*transportSubscription
	closed bool
}

type transportSubscription struct {
	id        string
	queue     string
	transport *Transport
}

// Option configures the transport.
type Option func(*config)

type config struct {
	logger            *slog.Logger
	connectionOptions []rabbitmq.ConnectionOption
	consumerOptions   []rabbitmq.ConsumerOption
	confirmTimeout    time.Duration
}

// WithTransportLogger sets the logger.
func WithTransportLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithConnectionOptions forwards options to the connection manager.
func WithConnectionOptions(opts ...rabbitmq.ConnectionOption) Option {
	return func(c *config) {
		c.connectionOptions = append(c.connectionOptions, opts...)
	}
}

// WithConsumerOptions forwards options to the consumer.
func WithConsumerOptions(opts ...rabbitmq.ConsumerOption) Option {
	return func(c *config) {
		c.consumerOptions = append(c.consumerOptions, opts...)
	}
}

// WithConfirmTimeout sets the publisher confirm timeout.
func WithConfirmTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.confirmTimeout = timeout
	}
}

// NewTransport connects to the broker and declares the events exchange.
func NewTransport(url string, options ...Option) (*Transport, error) {
	cfg := &config{
		logger:         slog.Default(),
		confirmTimeout: 5 * time.Second,
	}
	for _, opt := range options {
		opt(cfg)
	}

	manager := rabbitmq.NewConnectionManager(url, cfg.connectionOptions...)
	if err := manager.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	pool, err := rabbitmq.NewChannelPool(manager)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to create channel pool: %w", err)
	}

	t := &Transport{
		manager: manager,
		pool:    pool,
		publisher: rabbitmq.NewConfirmPublisher(pool,
			rabbitmq.WithConfirmTimeout(cfg.confirmTimeout),
			rabbitmq.WithConfirmPublisherLogger(cfg.logger),
		),
		consumer: rabbitmq.NewConsumer(pool, cfg.consumerOptions...),
		topology: rabbitmq.NewTopology(pool),
		logger:   cfg.logger,
		subs:     make(map[string]*transportSubscription),
	}

	if err := t.topology.DeclareEventsExchange(context.Background()); err != nil {
		_ = pool.Close()
		_ = manager.Close()
		return nil, fmt.Errorf("failed to declare events exchange: %w", err)
	}

	return t, nil
}

// Publish sends data under subject on the events exchange, waiting for the
// broker confirm. One attempt only.
func (t *Transport) Publish(ctx context.Context, subject string, data []byte) error {
	if subject == "" {
		return fmt.Errorf("subject cannot be empty")
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	return t.publisher.Publish(ctx, rabbitmq.EventsExchange, subject, msg)
}

// Subscribe binds an exclusive queue to the events exchange for the given
// subject pattern and feeds deliveries to handler.
func (t *Transport) Subscribe(ctx context.Context, pattern string, handler messaging.DeliveryHandler) (messaging.Subscription, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}
	t.mu.Unlock()

	id := uuid.New().String()
	queue, err := t.topology.DeclareSubscriberQueue(ctx, rabbitmq.QueueSpec{
		Name:       fmt.Sprintf("carebus.sub.%s", id),
		BindingKey: BindingKeyForPattern(pattern),
		AutoDelete: true,
		Exclusive:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue for pattern %s: %w", pattern, err)
	}

	err = t.consumer.Subscribe(ctx, queue, func(ctx context.Context, d amqp.Delivery) error {
		return handler.Handle(ctx, messaging.Delivery{
			Subject: d.RoutingKey,
			Data:    d.Body,
		})
	})
	if err != nil {
		_ = t.topology.DeleteQueue(context.Background(), queue)
		return nil, fmt.Errorf("failed to consume pattern %s: %w", pattern, err)
	}

	sub := &transportSubscription{id: id, queue: queue, transport: t}
	t.mu.Lock()
	t.subs[id] = sub
	t.mu.Unlock()

	t.logger.Debug("subscribed",
		"pattern", pattern,
		"bindingKey", BindingKeyForPattern(pattern),
		"queue", queue,
	)
	return sub, nil
}

// IsConnected reports broker connectivity for the health surface.
func (t *Transport) IsConnected() bool {
	return t.manager.IsConnected()
}

// Close stops all consumers and tears down the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.subs = make(map[string]*transportSubscription)
	t.mu.Unlock()

	t.consumer.UnsubscribeAll()
	if err := t.pool.Close(); err != nil {
		t.logger.Warn("failed to close channel pool", "error", err)
	}
	return t.manager.Close()
}

// Unsubscribe stops this subscription's consumer and drops its queue.
func (s *transportSubscription) Unsubscribe() error {
	s.transport.mu.Lock()
	_, exists := s.transport.subs[s.id]
	delete(s.transport.subs, s.id)
	s.transport.mu.Unlock()

	if !exists {
		return nil
	}
	return s.transport.consumer.Unsubscribe(s.queue)
}

// BindingKeyForPattern translates a subject pattern to an AMQP binding key:
// the tail chevron becomes "#" and single-token stars are already valid.
// The bare ">" matches everything, which on a topic exchange is "#".
func BindingKeyForPattern(pattern string) string {
	if pattern == ">" {
		return "#"
	}

	tokens := strings.Split(pattern, ".")
	for i, token := range tokens {
		if token == ">" {
			tokens[i] = "#"
		}
	}
	return strings.Join(tokens, ".")
}

var _ messaging.Transport = (*Transport)(nil)
