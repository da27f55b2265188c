package eventstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carebus/carebus-go/contracts"
	"github.com/carebus/carebus-go/messaging"
	"github.com/google/uuid"
)

// sourceServiceByPrefix maps a subject's first token to the service that
// owns that domain. Unknown prefixes fall through to UnknownService.
var sourceServiceByPrefix = map[string]string{
	"appointment":  "appointment-service",
	"patient":      "patient-service",
	"notification": "notification-service",
	"doctor":       "doctor-service",
}

// UnknownService is recorded when a subject's domain is not in the map.
const UnknownService = "unknown"

// defaultPatterns is the wildcard plus the explicit per-domain prefixes.
// The redundancy covers transports with incomplete wildcard support; a
// message matched by two patterns is stored twice, which the store accepts.
var defaultPatterns = []string{
	contracts.PatternAllEvents,
	contracts.PatternAllAppointments,
	contracts.PatternAllPatients,
	contracts.PatternAllNotifications,
	contracts.PatternAllDoctors,
}

// Recorder ingests every bus message into a Store. It is a passive observer:
// no error it encounters ever reaches a publisher.
type Recorder struct {
	store    Store
	logger   *slog.Logger
	patterns []string
	subs     []messaging.Subscription
}

// RecorderOption configures the recorder.
type RecorderOption func(*Recorder)

// WithRecorderLogger sets the logger.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithPatterns overrides the subject patterns subscribed to.
func WithPatterns(patterns ...string) RecorderOption {
	return func(r *Recorder) {
		r.patterns = patterns
	}
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store, options ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	r := &Recorder{
		store:    store,
		logger:   slog.Default(),
		patterns: defaultPatterns,
	}

	for _, opt := range options {
		opt(r)
	}

	return r, nil
}

// Start subscribes to every configured pattern.
func (r *Recorder) Start(ctx context.Context, transport messaging.Transport) error {
	if transport == nil {
		return fmt.Errorf("transport cannot be nil")
	}

	for _, pattern := range r.patterns {
		sub, err := transport.Subscribe(ctx, pattern, messaging.DeliveryHandlerFunc(r.ingest))
		if err != nil {
			r.Stop()
			return fmt.Errorf("failed to subscribe recorder to %s: %w", pattern, err)
		}
		r.subs = append(r.subs, sub)
		r.logger.Info("event recorder subscribed", "pattern", pattern)
	}

	return nil
}

// Stop cancels all subscriptions.
func (r *Recorder) Stop() {
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			r.logger.Warn("failed to unsubscribe recorder", "error", err)
		}
	}
	r.subs = nil
}

// ingest converts one delivery into a stored record. It always returns nil:
// the recorder has no feedback channel to producers, so failures are logged
// and the message is dropped.
func (r *Recorder) ingest(ctx context.Context, delivery messaging.Delivery) error {
	record := RecordFromDelivery(delivery.Subject, delivery.Data)

	if err := r.store.Append(ctx, record); err != nil {
		r.logger.Error("failed to store event",
			"subject", delivery.Subject,
			"eventType", record.EventType,
			"correlationId", record.CorrelationID,
			"error", err,
		)
		return nil
	}

	r.logger.Debug("event stored",
		"recordId", record.ID,
		"subject", delivery.Subject,
		"eventType", record.EventType,
	)
	return nil
}

// RecordFromDelivery builds a Record from a raw bus delivery. The parse is
// lenient: a body that is not a valid envelope still produces a record, with
// the event type falling back to the subject and the timestamp to ingestion
// time.
func RecordFromDelivery(subject string, body []byte) Record {
	now := time.Now().UTC()

	record := Record{
		ID:            uuid.New().String(),
		Subject:       subject,
		EventType:     subject,
		EventData:     append([]byte(nil), body...),
		Timestamp:     now,
		SourceService: SourceServiceForSubject(subject),
		StoredAt:      now,
	}

	env, err := contracts.Unmarshal(body)
	if err != nil {
		return record
	}

	if env.EventType != "" {
		record.EventType = env.EventType
	}
	record.CorrelationID = env.CorrelationID
	if !env.Timestamp.IsZero() {
		record.Timestamp = env.Timestamp.UTC()
	}

	return record
}

// SourceServiceForSubject derives the owning service from the subject's
// first token.
func SourceServiceForSubject(subject string) string {
	prefix, _, _ := strings.Cut(subject, ".")
	if service, ok := sourceServiceByPrefix[prefix]; ok {
		return service
	}
	return UnknownService
}
