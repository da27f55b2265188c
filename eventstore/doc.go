// Package eventstore maintains a durable, queryable log of every envelope
// observed on the bus.
//
// The Recorder subscribes to the universal wildcard plus explicit per-domain
// prefixes and appends one Record per delivery. It never participates in a
// request/response flow and never pushes an error back toward a publisher:
// ingestion failures are logged and the message is dropped.
//
// Two Store implementations are provided. PostgresStore is the production
// backend, one append-only table indexed by subject, event type, and
// correlation id. MemoryStore holds the same log in process memory and backs
// tests and single-binary development setups.
//
// Duplicate delivery is accepted: a message that arrives through both the
// wildcard and a prefix subscription is stored twice, each copy under its
// own record id. Callers reconstructing a saga should sort by claimed
// timestamp and tolerate repeats.
package eventstore
