package eventstore

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by Get for an unknown record id.
var ErrRecordNotFound = errors.New("event record not found")

// Store is the append-only event log. Records are never updated; the only
// destructive operation is the administrative Purge.
type Store interface {
	// Append stores one record. The record's ID, StoredAt, and timestamp
	// fallbacks must already be populated by the caller.
	Append(ctx context.Context, record Record) error

	// Get returns the record with the given id, or ErrRecordNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Query returns records matching the filter, newest claimed timestamp
	// first.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// GetByCorrelation returns every record sharing the correlation id,
	// ordered ascending by claimed timestamp for saga reconstruction.
	GetByCorrelation(ctx context.Context, correlationID string) ([]Record, error)

	// GetBySubjectPrefix returns records whose subject starts with prefix,
	// newest claimed timestamp first, capped at limit (DefaultPrefixLimit
	// when non-positive).
	GetBySubjectPrefix(ctx context.Context, prefix string, limit int) ([]Record, error)

	// Stats returns aggregate counts over the whole log.
	Stats(ctx context.Context) (Stats, error)

	// Purge deletes all records and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
}
