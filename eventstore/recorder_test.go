package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carebus/carebus-go/contracts"
	"github.com/carebus/carebus-go/messaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceServiceForSubject(t *testing.T) {
	cases := []struct {
		subject string
		want    string
	}{
		{"appointment.created", "appointment-service"},
		{"appointment.create.command", "appointment-service"},
		{"patient.updated", "patient-service"},
		{"notification.sent", "notification-service"},
		{"doctor.available", "doctor-service"},
		{"billing.invoice.created", "unknown"},
		{"appointment", "appointment-service"},
		{"", "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.subject, func(t *testing.T) {
			assert.Equal(t, tc.want, SourceServiceForSubject(tc.subject))
		})
	}
}

func TestRecordFromDelivery(t *testing.T) {
	t.Run("extracts envelope metadata", func(t *testing.T) {
		body := []byte(`{"event_type":"appointment.created","correlation_id":"c1","timestamp":"2025-01-01T10:00:00Z","appointment_id":"A1"}`)

		record := RecordFromDelivery("appointment.created", body)

		_, err := uuid.Parse(record.ID)
		assert.NoError(t, err)
		assert.Equal(t, "appointment.created", record.Subject)
		assert.Equal(t, "appointment.created", record.EventType)
		assert.Equal(t, "c1", record.CorrelationID)
		assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), record.Timestamp)
		assert.Equal(t, "appointment-service", record.SourceService)
		assert.JSONEq(t, string(body), string(record.EventData))
		assert.WithinDuration(t, time.Now().UTC(), record.StoredAt, time.Minute)
	})

	t.Run("event type falls back to subject", func(t *testing.T) {
		record := RecordFromDelivery("patient.updated", []byte(`{"name":"x"}`))
		assert.Equal(t, "patient.updated", record.EventType)
	})

	t.Run("timestamp falls back to ingestion time", func(t *testing.T) {
		record := RecordFromDelivery("appointment.created", []byte(`{"event_type":"appointment.created"}`))
		assert.WithinDuration(t, time.Now().UTC(), record.Timestamp, time.Minute)
	})

	t.Run("non-json body still yields a record", func(t *testing.T) {
		record := RecordFromDelivery("billing.raw", []byte(`not json at all`))
		assert.Equal(t, "billing.raw", record.Subject)
		assert.Equal(t, "billing.raw", record.EventType)
		assert.Equal(t, "unknown", record.SourceService)
		assert.Equal(t, []byte(`not json at all`), record.EventData)
	})

	t.Run("two deliveries get distinct ids", func(t *testing.T) {
		body := []byte(`{"event_type":"appointment.created"}`)
		first := RecordFromDelivery("appointment.created", body)
		second := RecordFromDelivery("appointment.created", body)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestRecorderIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("stores every delivery on overlapping patterns", func(t *testing.T) {
		transport := messaging.NewInProcTransport()
		store := NewMemoryStore()

		recorder, err := NewRecorder(store, WithPatterns(contracts.PatternAllEvents, contracts.PatternAllAppointments))
		require.NoError(t, err)
		require.NoError(t, recorder.Start(ctx, transport))
		defer recorder.Stop()

		body := []byte(`{"event_type":"appointment.created","correlation_id":"c1","appointment_id":"A1"}`)
		require.NoError(t, transport.Publish(ctx, "appointment.created", body))

		// Both patterns match, so the same message lands twice as distinct
		// records.
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Total)
		assert.Equal(t, int64(2), stats.BySubject["appointment.created"])

		records, err := store.GetByCorrelation(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.NotEqual(t, records[0].ID, records[1].ID)
	})

	t.Run("non-domain subjects are still captured by the wildcard", func(t *testing.T) {
		transport := messaging.NewInProcTransport()
		store := NewMemoryStore()

		recorder, err := NewRecorder(store)
		require.NoError(t, err)
		require.NoError(t, recorder.Start(ctx, transport))
		defer recorder.Stop()

		require.NoError(t, transport.Publish(ctx, "billing.invoice.created", []byte(`{"event_type":"billing.invoice.created"}`)))

		records, err := store.GetBySubjectPrefix(ctx, "billing.", 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "unknown", records[0].SourceService)
	})

	t.Run("store failure never propagates to the publisher", func(t *testing.T) {
		transport := messaging.NewInProcTransport()

		recorder, err := NewRecorder(failingStore{}, WithPatterns(contracts.PatternAllEvents))
		require.NoError(t, err)
		require.NoError(t, recorder.Start(ctx, transport))
		defer recorder.Stop()

		assert.NoError(t, transport.Publish(ctx, "appointment.created", []byte(`{}`)))
	})

	t.Run("stop ends ingestion", func(t *testing.T) {
		transport := messaging.NewInProcTransport()
		store := NewMemoryStore()

		recorder, err := NewRecorder(store, WithPatterns(contracts.PatternAllEvents))
		require.NoError(t, err)
		require.NoError(t, recorder.Start(ctx, transport))
		recorder.Stop()

		require.NoError(t, transport.Publish(ctx, "appointment.created", []byte(`{}`)))

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
	})

	t.Run("nil store is rejected", func(t *testing.T) {
		_, err := NewRecorder(nil)
		assert.Error(t, err)
	})

	t.Run("nil transport is rejected", func(t *testing.T) {
		recorder, err := NewRecorder(NewMemoryStore())
		require.NoError(t, err)
		assert.Error(t, recorder.Start(ctx, nil))
	})
}

// failingStore rejects every append.
type failingStore struct {
	Store
}

func (failingStore) Append(ctx context.Context, record Record) error {
	return errors.New("disk full")
}
