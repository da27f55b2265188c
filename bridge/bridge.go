package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carebus/carebus-go/contracts"
	"github.com/carebus/carebus-go/internal/reliability"
	"github.com/carebus/carebus-go/messaging"
	"github.com/google/uuid"
)

var (
	// ErrTimeout is returned when no response arrives within the deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrUnknownCommand is returned for command types missing from the
	// registry.
	ErrUnknownCommand = errors.New("unknown command type")

	// ErrTooManyPending is returned when the pending-request table is full.
	ErrTooManyPending = errors.New("too many pending requests")

	// ErrClosed is returned by Invoke after Close.
	ErrClosed = errors.New("bridge is closed")
)

// DefaultTimeout is applied when Invoke is called with a non-positive
// timeout. It matches the gateway's historical 10-second deadline.
const DefaultTimeout = 10 * time.Second

// pendingRequest is the ephemeral per-call record. It exists only between
// table insert and first resolution or timeout, and is never persisted.
type pendingRequest struct {
	correlationID string
	createdAt     time.Time
	deadline      time.Time
	responseCh    chan contracts.Response
}

// Bridge turns the fire-and-forget bus into a blocking call interface.
type Bridge struct {
	transport  messaging.Transport
	publisher  *messaging.Publisher
	registry   *Registry
	breaker    *reliability.CircuitBreaker
	logger     *slog.Logger
	maxPending int

	mu      sync.Mutex
	pending map[string]*pendingRequest
	subs    []messaging.Subscription
	closed  bool
}

// Option configures the bridge.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	breaker       *reliability.CircuitBreaker
	maxPending    int
	sourceService string
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithCircuitBreaker guards command publishes with a circuit breaker. The
// breaker never retries; it only fails fast once the transport has proven
// unhealthy, and its state feeds the health surface.
func WithCircuitBreaker(cb *reliability.CircuitBreaker) Option {
	return func(c *config) {
		c.breaker = cb
	}
}

// WithMaxPendingRequests caps the number of concurrently outstanding calls.
func WithMaxPendingRequests(max int) Option {
	return func(c *config) {
		c.maxPending = max
	}
}

// WithSourceService sets the source_service stamped on outgoing commands.
func WithSourceService(service string) Option {
	return func(c *config) {
		c.sourceService = service
	}
}

// New creates a bridge over the given transport and subscribes to every
// response subject in the registry.
func New(transport messaging.Transport, registry *Registry, options ...Option) (*Bridge, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	cfg := &config{
		logger:        slog.Default(),
		maxPending:    1000,
		sourceService: "api-gateway",
	}
	for _, opt := range options {
		opt(cfg)
	}

	b := &Bridge{
		transport: transport,
		publisher: messaging.NewPublisher(transport,
			messaging.WithPublisherLogger(cfg.logger),
			messaging.WithSourceService(cfg.sourceService),
		),
		registry:   registry,
		breaker:    cfg.breaker,
		logger:     cfg.logger,
		maxPending: cfg.maxPending,
		pending:    make(map[string]*pendingRequest),
	}

	ctx := context.Background()
	for subject, reg := range registry.ResponseSubjects() {
		sub, err := transport.Subscribe(ctx, subject, b.responseHandler(reg))
		if err != nil {
			b.unsubscribeAll()
			return nil, fmt.Errorf("failed to subscribe to response subject %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}

	return b, nil
}

// Invoke publishes cmd and blocks until its response arrives, the timeout
// elapses, or ctx is cancelled. A non-positive timeout uses DefaultTimeout.
// The command's correlation id is always overwritten with a fresh one:
// reusing an id across invocations is undefined, so the bridge never lets
// one escape the call it was minted for.
func (b *Bridge) Invoke(ctx context.Context, cmd contracts.Command, timeout time.Duration) (contracts.Response, error) {
	if cmd == nil {
		return nil, fmt.Errorf("command cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reg, err := b.registry.Lookup(cmd.GetEventType())
	if err != nil {
		return nil, err
	}

	correlationID := uuid.New().String()
	cmd.SetCorrelationID(correlationID)

	now := time.Now()
	pending := &pendingRequest{
		correlationID: correlationID,
		createdAt:     now,
		deadline:      now.Add(timeout),
		responseCh:    make(chan contracts.Response, 1),
	}

	// Register before publishing so a response observed between publish and
	// wait always finds its slot.
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if len(b.pending) >= b.maxPending {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w (max %d)", ErrTooManyPending, b.maxPending)
	}
	b.pending[correlationID] = pending
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, correlationID)
		b.mu.Unlock()
	}()

	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// One publish attempt. Transport failures surface immediately; a retry
	// is a new invocation with a new correlation id.
	publish := func() error {
		_, err := b.publisher.Publish(requestCtx, reg.CommandSubject, cmd)
		return err
	}
	if b.breaker != nil {
		err = b.breaker.Execute(requestCtx, publish)
	} else {
		err = publish()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to publish command %s: %w", cmd.GetEventType(), err)
	}

	select {
	case resp := <-pending.responseCh:
		return resp, nil
	case <-requestCtx.Done():
		if ctx.Err() != nil {
			// The caller's own context ended; report that rather than a
			// bridge timeout.
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %v (correlation %s)", ErrTimeout, timeout, correlationID)
	}
}

// InvokeTyped invokes cmd and asserts the response to T.
func InvokeTyped[T contracts.Response](b *Bridge, ctx context.Context, cmd contracts.Command, timeout time.Duration) (T, error) {
	var zero T

	resp, err := b.Invoke(ctx, cmd, timeout)
	if err != nil {
		return zero, err
	}

	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected response type: got %T, want %T", resp, zero)
	}
	return typed, nil
}

// PendingCount returns the number of outstanding invocations.
func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// responseHandler builds the long-lived subscriber handler for one response
// subject. The handler stays fast: envelope parse, table lookup, one
// non-blocking channel send. Anything that cannot be resolved is dropped so
// a bad message never stalls other in-flight calls.
func (b *Bridge) responseHandler(reg Registration) messaging.DeliveryHandler {
	return messaging.DeliveryHandlerFunc(func(ctx context.Context, delivery messaging.Delivery) error {
		env, err := contracts.Unmarshal(delivery.Data)
		if err != nil {
			b.logger.Warn("dropping malformed response",
				"subject", delivery.Subject,
				"error", err,
			)
			return nil
		}

		if env.CorrelationID == "" {
			b.logger.Warn("dropping response without correlation id",
				"subject", delivery.Subject,
				"eventType", env.EventType,
			)
			return nil
		}

		b.mu.Lock()
		pending, exists := b.pending[env.CorrelationID]
		b.mu.Unlock()

		if !exists {
			// Already resolved or timed out; a duplicate or late response
			// is not an error.
			b.logger.Debug("dropping unmatched response",
				"subject", delivery.Subject,
				"correlationId", env.CorrelationID,
			)
			return nil
		}

		resp := reg.NewResponse()
		if err := env.DecodePayload(resp); err != nil {
			b.logger.Warn("dropping undecodable response",
				"subject", delivery.Subject,
				"correlationId", env.CorrelationID,
				"error", err,
			)
			return nil
		}

		select {
		case pending.responseCh <- resp:
		default:
			// Slot already filled: first response wins.
			b.logger.Debug("dropping duplicate response",
				"subject", delivery.Subject,
				"correlationId", env.CorrelationID,
			)
		}
		return nil
	})
}

// Close unsubscribes from all response subjects and rejects further calls.
// Calls already waiting run to their own deadline.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.unsubscribeAll()
	return nil
}

func (b *Bridge) unsubscribeAll() {
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn("failed to unsubscribe response handler", "error", err)
		}
	}
	b.subs = nil
}
