package eventstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store for tests and development. Records are
// held in append order with secondary indexes by id and correlation id; the
// indexes hold positions into the log so a purge invalidates them wholesale.
type MemoryStore struct {
	mu            sync.RWMutex
	records       []Record
	byID          map[string]int
	byCorrelation map[string][]int
	maxRecords    int
}

// MemoryStoreOption configures the memory store.
type MemoryStoreOption func(*MemoryStore)

// WithMaxRecords caps the log size; the oldest fifth is dropped when the cap
// is reached.
func WithMaxRecords(max int) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.maxRecords = max
	}
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore(options ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		byID:          make(map[string]int),
		byCorrelation: make(map[string][]int),
		maxRecords:    100000,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Append stores one record.
func (s *MemoryStore) Append(ctx context.Context, record Record) error {
	if record.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.maxRecords {
		s.rotate()
	}

	pos := len(s.records)
	s.records = append(s.records, record)
	s.byID[record.ID] = pos
	if record.CorrelationID != "" {
		s.byCorrelation[record.CorrelationID] = append(s.byCorrelation[record.CorrelationID], pos)
	}

	return nil
}

// Get returns the record with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, exists := s.byID[id]
	if !exists {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return s.records[pos], nil
}

// Query returns records matching the filter, newest claimed timestamp first.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	s.mu.RLock()
	matched := make([]Record, 0)
	for _, record := range s.records {
		if filter.Subject != "" && record.Subject != filter.Subject {
			continue
		}
		if filter.EventType != "" && record.EventType != filter.EventType {
			continue
		}
		if filter.CorrelationID != "" && record.CorrelationID != filter.CorrelationID {
			continue
		}
		if !filter.Start.IsZero() && record.Timestamp.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && record.Timestamp.After(filter.End) {
			continue
		}
		matched = append(matched, record)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// GetByCorrelation returns records sharing the correlation id, ascending by
// claimed timestamp.
func (s *MemoryStore) GetByCorrelation(ctx context.Context, correlationID string) ([]Record, error) {
	s.mu.RLock()
	positions := s.byCorrelation[correlationID]
	matched := make([]Record, 0, len(positions))
	for _, pos := range positions {
		matched = append(matched, s.records[pos])
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})
	return matched, nil
}

// GetBySubjectPrefix returns records whose subject starts with prefix,
// newest claimed timestamp first.
func (s *MemoryStore) GetBySubjectPrefix(ctx context.Context, prefix string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultPrefixLimit
	}

	s.mu.RLock()
	matched := make([]Record, 0)
	for _, record := range s.records {
		if strings.HasPrefix(record.Subject, prefix) {
			matched = append(matched, record)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Stats returns aggregate counts over the whole log.
func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:       int64(len(s.records)),
		BySubject:   make(map[string]int64),
		ByEventType: make(map[string]int64),
	}
	for _, record := range s.records {
		stats.BySubject[record.Subject]++
		stats.ByEventType[record.EventType]++
	}
	return stats, nil
}

// Purge deletes all records.
func (s *MemoryStore) Purge(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := int64(len(s.records))
	s.records = nil
	s.byID = make(map[string]int)
	s.byCorrelation = make(map[string][]int)
	return removed, nil
}

// rotate drops the oldest fifth of the log. Caller holds s.mu.
func (s *MemoryStore) rotate() {
	drop := s.maxRecords / 5
	if drop < 1 {
		drop = 1
	}

	s.records = append([]Record(nil), s.records[drop:]...)
	s.byID = make(map[string]int, len(s.records))
	s.byCorrelation = make(map[string][]int)
	for pos, record := range s.records {
		s.byID[record.ID] = pos
		if record.CorrelationID != "" {
			s.byCorrelation[record.CorrelationID] = append(s.byCorrelation[record.CorrelationID], pos)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
