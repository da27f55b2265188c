package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConfirmPublisher publishes messages with broker confirms. Each call makes
// exactly one attempt; an unconfirmed or returned publish is an error the
// caller sees immediately.
type ConfirmPublisher struct {
	pool           *ChannelPool
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// ConfirmPublisherOption configures the publisher.
type ConfirmPublisherOption func(*ConfirmPublisher)

// WithConfirmTimeout sets how long to wait for the broker's ack.
func WithConfirmTimeout(timeout time.Duration) ConfirmPublisherOption {
	return func(p *ConfirmPublisher) {
		p.confirmTimeout = timeout
	}
}

// WithConfirmPublisherLogger sets the logger.
func WithConfirmPublisherLogger(logger *slog.Logger) ConfirmPublisherOption {
	return func(p *ConfirmPublisher) {
		p.logger = logger
	}
}

// NewConfirmPublisher creates a publisher over the given pool.
func NewConfirmPublisher(pool *ChannelPool, options ...ConfirmPublisherOption) *ConfirmPublisher {
	p := &ConfirmPublisher{
		pool:           pool,
		confirmTimeout: 5 * time.Second,
		logger:         slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish sends one message to exchange under routingKey and waits for the
// broker confirm.
func (p *ConfirmPublisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	ch, err := p.pool.Get(ctx)
	if err != nil {
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}
	defer p.pool.Put(ch)

	if err := ch.Confirm(false); err != nil {
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        fmt.Errorf("failed to enable confirms: %w", err),
			Timestamp:  time.Now(),
		}
	}

	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return &PublishError{
				Exchange:   exchange,
				RoutingKey: routingKey,
				Err:        ErrPublishNotConfirmed,
				Timestamp:  time.Now(),
			}
		}
		p.logger.Debug("publish confirmed",
			"exchange", exchange,
			"routingKey", routingKey,
			"deliveryTag", confirm.DeliveryTag,
		)
		return nil

	case ret := <-returns:
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        fmt.Errorf("%w: %s", ErrPublishReturned, ret.ReplyText),
			Timestamp:  time.Now(),
		}

	case <-time.After(p.confirmTimeout):
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        ErrPublishNotConfirmed,
			Timestamp:  time.Now(),
		}

	case <-ctx.Done():
		return ctx.Err()
	}
}
