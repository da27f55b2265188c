package eventstore

import (
	"time"
)

// Record is one stored envelope. Timestamp is the event's own claimed time
// and StoredAt is local ingestion time; clock skew across services means
// neither bounds the other.
type Record struct {
	ID            string    `json:"id"`
	Subject       string    `json:"subject"`
	EventType     string    `json:"event_type"`
	EventData     []byte    `json:"event_data"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	SourceService string    `json:"source_service"`
	StoredAt      time.Time `json:"stored_at"`
}

// Filter narrows a query. Zero-valued fields are ignored; set fields combine
// with logical AND. Results are capped at Limit, or DefaultQueryLimit when
// Limit is zero or negative.
type Filter struct {
	Subject       string
	EventType     string
	CorrelationID string
	Start         time.Time
	End           time.Time
	Limit         int
}

// Stats is the aggregate view over the whole log.
type Stats struct {
	Total       int64            `json:"total"`
	BySubject   map[string]int64 `json:"by_subject"`
	ByEventType map[string]int64 `json:"by_event_type"`
}

const (
	// DefaultQueryLimit caps filtered queries.
	DefaultQueryLimit = 100

	// DefaultPrefixLimit caps subject-prefix queries.
	DefaultPrefixLimit = 50
)
