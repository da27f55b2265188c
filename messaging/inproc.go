package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InProcTransport is an in-process Transport for tests and single-binary
// wiring. Delivery is synchronous in the publisher's goroutine; handler
// errors are logged and swallowed, matching the fire-and-forget contract of
// the real bus. Every subscription whose pattern matches the subject
// receives its own copy of the delivery, so overlapping patterns (a
// wildcard plus a literal prefix) observe the same message more than once —
// the same at-least-once behavior consumers must tolerate in production.
type InProcTransport struct {
	mu     sync.RWMutex
	subs   map[int]*inprocSubscription
	nextID int
	closed bool
	logger *slog.Logger
}

type inprocSubscription struct {
	id        int
	pattern   string
	handler   DeliveryHandler
	transport *InProcTransport
}

// InProcOption configures the in-process transport.
type InProcOption func(*InProcTransport)

// WithInProcLogger sets the logger.
func WithInProcLogger(logger *slog.Logger) InProcOption {
	return func(t *InProcTransport) {
		t.logger = logger
	}
}

// NewInProcTransport creates an in-process transport.
func NewInProcTransport(options ...InProcOption) *InProcTransport {
	t := &InProcTransport{
		subs:   make(map[int]*inprocSubscription),
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(t)
	}

	return t
}

// Publish delivers data to every subscription matching subject.
func (t *InProcTransport) Publish(ctx context.Context, subject string, data []byte) error {
	if subject == "" {
		return fmt.Errorf("subject cannot be empty")
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return fmt.Errorf("transport is closed")
	}
	matched := make([]*inprocSubscription, 0, len(t.subs))
	for _, sub := range t.subs {
		if MatchSubject(sub.pattern, subject) {
			matched = append(matched, sub)
		}
	}
	t.mu.RUnlock()

	for _, sub := range matched {
		delivery := Delivery{
			Subject: subject,
			Data:    append([]byte(nil), data...),
		}
		if err := sub.handler.Handle(ctx, delivery); err != nil {
			t.logger.Error("handler failed",
				"subject", subject,
				"pattern", sub.pattern,
				"error", err,
			)
		}
	}

	return nil
}

// Subscribe registers a handler for subjects matching pattern.
func (t *InProcTransport) Subscribe(ctx context.Context, pattern string, handler DeliveryHandler) (Subscription, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("transport is closed")
	}

	sub := &inprocSubscription{
		id:        t.nextID,
		pattern:   pattern,
		handler:   handler,
		transport: t,
	}
	t.subs[sub.id] = sub
	t.nextID++

	return sub, nil
}

// Close cancels all subscriptions and rejects further publishes.
func (t *InProcTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.subs = make(map[int]*inprocSubscription)
	return nil
}

// Unsubscribe removes the subscription from the transport.
func (s *inprocSubscription) Unsubscribe() error {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()

	delete(s.transport.subs, s.id)
	return nil
}
