package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryHandler processes one raw AMQP delivery.
type DeliveryHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer drains queues into handlers. One goroutine per subscribed queue;
// failed handlers nack without requeue, since every queue here feeds a
// consumer that treats a bad message as droppable.
type Consumer struct {
	pool          *ChannelPool
	prefetchCount int
	logger        *slog.Logger

	mu     sync.Mutex
	active map[string]*consumerState
}

type consumerState struct {
	queue  string
	cancel context.CancelFunc
	done   chan struct{}
}

// ConsumerOption configures the consumer.
type ConsumerOption func(*Consumer)

// WithPrefetchCount sets the per-channel prefetch.
func WithPrefetchCount(count int) ConsumerOption {
	return func(c *Consumer) {
		c.prefetchCount = count
	}
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a consumer over the given pool.
func NewConsumer(pool *ChannelPool, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		pool:          pool,
		prefetchCount: 32,
		logger:        slog.Default(),
		active:        make(map[string]*consumerState),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Subscribe starts consuming queue into handler.
func (c *Consumer) Subscribe(ctx context.Context, queue string, handler DeliveryHandler) error {
	c.mu.Lock()
	if _, exists := c.active[queue]; exists {
		c.mu.Unlock()
		return fmt.Errorf("already consuming queue %s", queue)
	}
	c.mu.Unlock()

	ch, err := c.pool.Get(ctx)
	if err != nil {
		return &ConsumerError{Queue: queue, Op: "subscribe", Err: err, Timestamp: time.Now()}
	}

	if err := ch.Qos(c.prefetchCount, 0, false); err != nil {
		c.pool.Put(ch)
		return &ConsumerError{Queue: queue, Op: "qos", Err: err, Timestamp: time.Now()}
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		c.pool.Put(ch)
		return &ConsumerError{Queue: queue, Op: "consume", Err: err, Timestamp: time.Now()}
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	state := &consumerState{
		queue:  queue,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.active[queue] = state
	c.mu.Unlock()

	go c.drain(consumerCtx, state, ch, deliveries, handler)

	c.logger.Info("consuming queue",
		"queue", queue,
		"prefetchCount", c.prefetchCount,
	)
	return nil
}

func (c *Consumer) drain(ctx context.Context, state *consumerState, ch *amqp.Channel, deliveries <-chan amqp.Delivery, handler DeliveryHandler) {
	defer func() {
		close(state.done)
		c.pool.Put(ch)

		c.mu.Lock()
		delete(c.active, state.queue)
		c.mu.Unlock()

		c.logger.Info("consumer stopped", "queue", state.queue)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", state.queue)
				return
			}
			c.dispatch(ctx, state.queue, delivery, handler)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, queue string, delivery amqp.Delivery, handler DeliveryHandler) {
	msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := handler(msgCtx, delivery); err != nil {
		c.logger.Error("handler failed",
			"queue", queue,
			"routingKey", delivery.RoutingKey,
			"error", err,
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			c.logger.Error("failed to nack message", "queue", queue, "error", nackErr)
		}
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("failed to ack message", "queue", queue, "error", ackErr)
	}
}

// Unsubscribe stops the consumer for one queue and waits for it to exit.
func (c *Consumer) Unsubscribe(queue string) error {
	c.mu.Lock()
	state, exists := c.active[queue]
	c.mu.Unlock()

	if !exists {
		return fmt.Errorf("no active consumer for queue %s", queue)
	}

	state.cancel()
	<-state.done
	return nil
}

// UnsubscribeAll stops every active consumer.
func (c *Consumer) UnsubscribeAll() {
	c.mu.Lock()
	queues := make([]string, 0, len(c.active))
	for queue := range c.active {
		queues = append(queues, queue)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, queue := range queues {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			if err := c.Unsubscribe(q); err != nil {
				c.logger.Warn("failed to unsubscribe", "queue", q, "error", err)
			}
		}(queue)
	}
	wg.Wait()
}
