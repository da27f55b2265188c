package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ChannelPool hands out AMQP channels over the managed connection. Channels
// found closed on checkout or checkin are discarded and replaced lazily.
type ChannelPool struct {
	manager *ConnectionManager
	idle    chan *amqp.Channel
	maxIdle int
	closed  chan struct{}
}

// ChannelPoolOption configures the pool.
type ChannelPoolOption func(*ChannelPool)

// WithMaxIdleChannels sets how many idle channels are kept around.
func WithMaxIdleChannels(n int) ChannelPoolOption {
	return func(cp *ChannelPool) {
		cp.maxIdle = n
	}
}

// NewChannelPool creates a pool over the given connection manager.
func NewChannelPool(manager *ConnectionManager, options ...ChannelPoolOption) (*ChannelPool, error) {
	if manager == nil {
		return nil, fmt.Errorf("%w: connection manager is required", ErrInvalidConfiguration)
	}

	cp := &ChannelPool{
		manager: manager,
		maxIdle: 8,
		closed:  make(chan struct{}),
	}

	for _, opt := range options {
		opt(cp)
	}

	if cp.maxIdle < 1 {
		return nil, fmt.Errorf("%w: max idle channels must be at least 1", ErrInvalidConfiguration)
	}
	cp.idle = make(chan *amqp.Channel, cp.maxIdle)

	return cp, nil
}

// Get returns a usable channel, reusing an idle one when possible.
func (cp *ChannelPool) Get(ctx context.Context) (*amqp.Channel, error) {
	select {
	case <-cp.closed:
		return nil, ErrChannelPoolClosed
	default:
	}

	for {
		select {
		case ch := <-cp.idle:
			if ch.IsClosed() {
				continue
			}
			return ch, nil
		default:
			return cp.open(ctx)
		}
	}
}

// Put returns a channel to the pool, closing it when the pool is full or
// shut down.
func (cp *ChannelPool) Put(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}

	select {
	case <-cp.closed:
		_ = ch.Close()
		return
	default:
	}

	select {
	case cp.idle <- ch:
	default:
		_ = ch.Close()
	}
}

// Execute runs fn with a pooled channel.
func (cp *ChannelPool) Execute(ctx context.Context, fn func(*amqp.Channel) error) error {
	ch, err := cp.Get(ctx)
	if err != nil {
		return err
	}
	defer cp.Put(ch)
	return fn(ch)
}

// Close drains and closes every idle channel.
func (cp *ChannelPool) Close() error {
	select {
	case <-cp.closed:
		return nil
	default:
		close(cp.closed)
	}

	for {
		select {
		case ch := <-cp.idle:
			if !ch.IsClosed() {
				_ = ch.Close()
			}
		default:
			return nil
		}
	}
}

func (cp *ChannelPool) open(ctx context.Context) (*amqp.Channel, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	conn, err := cp.manager.GetConnection()
	if err != nil {
		return nil, &ConnectionError{
			Op:        "open channel",
			URL:       SanitizeURL(cp.manager.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}
