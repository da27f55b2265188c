// Package rabbitmq wraps the AMQP client with connection management,
// channel pooling, confirmed publishing, and queue consumption.
//
// The broker carries subjects as topic-exchange routing keys on a single
// exchange. Publishing uses publisher confirms and makes exactly one
// attempt: a failed or unconfirmed publish surfaces to the caller, who
// decides whether the operation is worth repeating.
package rabbitmq
