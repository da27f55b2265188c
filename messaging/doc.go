// Package messaging defines the thin bus abstraction the rest of the module
// is built on: publish raw bytes to a subject, subscribe a handler to a
// subject pattern. The transport is deliberately dumb — correlation,
// persistence, and request/response semantics all live above it, in the
// bridge and eventstore packages.
//
// Subject patterns use the token syntax of the bus: subjects are dot
// separated, "*" matches exactly one token, and ">" matches one or more
// trailing tokens. Transports that speak a different wildcard dialect
// translate at their boundary.
package messaging
