// Package reliability provides a circuit breaker for broker-facing
// operations.
//
// The breaker fails fast once the broker has proven unhealthy instead of
// letting every caller ride out its own timeout. It never retries on the
// caller's behalf; a rejected call surfaces immediately and the caller
// decides what to do with it.
package reliability
