package health

import (
	"context"
	"time"

	"github.com/carebus/carebus-go/eventstore"
	"github.com/carebus/carebus-go/internal/reliability"
)

// Connectable is anything that can report broker connectivity; the bus
// transport satisfies it.
type Connectable interface {
	IsConnected() bool
}

// TransportChecker reports whether the bus connection is up. A down bus
// means commands cannot be published at all, which is the one failure worth
// escalating to service level.
type TransportChecker struct {
	transport Connectable
}

// NewTransportChecker creates a transport connectivity checker.
func NewTransportChecker(transport Connectable) *TransportChecker {
	return &TransportChecker{transport: transport}
}

func (c *TransportChecker) Name() string {
	return "transport"
}

func (c *TransportChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
	}

	if c.transport.IsConnected() {
		result.Status = StatusHealthy
		result.Message = "bus connection is up"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "bus connection is down"
	}

	result.Duration = time.Since(start)
	return result
}

// CircuitBreakerChecker surfaces the publish breaker's state: open means
// unhealthy, half-open degraded.
type CircuitBreakerChecker struct {
	breaker *reliability.CircuitBreaker
}

// NewCircuitBreakerChecker creates a breaker state checker.
func NewCircuitBreakerChecker(breaker *reliability.CircuitBreaker) *CircuitBreakerChecker {
	return &CircuitBreakerChecker{breaker: breaker}
}

func (c *CircuitBreakerChecker) Name() string {
	return "publish_breaker"
}

func (c *CircuitBreakerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	snapshot := c.breaker.Snapshot()

	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details: map[string]interface{}{
			"state":          snapshot.State.String(),
			"failures":       snapshot.Failures,
			"total_requests": snapshot.TotalRequests,
			"total_failures": snapshot.TotalFailures,
		},
	}

	switch snapshot.State {
	case reliability.StateOpen:
		result.Status = StatusUnhealthy
		result.Message = "publish circuit is open"
	case reliability.StateHalfOpen:
		result.Status = StatusDegraded
		result.Message = "publish circuit is probing"
	default:
		result.Status = StatusHealthy
		result.Message = "publish circuit is closed"
	}

	result.Duration = time.Since(start)
	return result
}

// StoreChecker verifies the event store answers queries.
type StoreChecker struct {
	store eventstore.Store
}

// NewStoreChecker creates an event store checker.
func NewStoreChecker(store eventstore.Store) *StoreChecker {
	return &StoreChecker{store: store}
}

func (c *StoreChecker) Name() string {
	return "event_store"
}

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
	}

	stats, err := c.store.Stats(ctx)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = "event store query failed"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result
	}

	result.Status = StatusHealthy
	result.Message = "event store is answering queries"
	result.Details = map[string]interface{}{
		"total_records":    stats.Total,
		"response_time_ms": time.Since(start).Milliseconds(),
	}
	result.Duration = time.Since(start)
	return result
}
