package eventstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(id, subject, eventType, correlationID string, at time.Time) Record {
	return Record{
		ID:            id,
		Subject:       subject,
		EventType:     eventType,
		EventData:     []byte(`{}`),
		CorrelationID: correlationID,
		Timestamp:     at,
		SourceService: SourceServiceForSubject(subject),
		StoredAt:      at,
	}
}

func TestMemoryStoreAppendGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("round trips a record", func(t *testing.T) {
		store := NewMemoryStore()
		record := seedRecord("r1", "appointment.created", "appointment.created", "c1", base)
		require.NoError(t, store.Append(ctx, record))

		got, err := store.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, record, got)
	})

	t.Run("missing id", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		store := NewMemoryStore()
		assert.Error(t, store.Append(ctx, Record{}))
	})
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, seedRecord("r1", "appointment.created", "appointment.created", "c1", base)))
	require.NoError(t, store.Append(ctx, seedRecord("r2", "appointment.created", "appointment.created", "c2", base.Add(time.Minute))))
	require.NoError(t, store.Append(ctx, seedRecord("r3", "patient.created", "patient.created", "c1", base.Add(2*time.Minute))))

	t.Run("filters combine with AND", func(t *testing.T) {
		records, err := store.Query(ctx, Filter{Subject: "appointment.created", CorrelationID: "c1"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "r1", records[0].ID)
	})

	t.Run("empty filter returns everything newest first", func(t *testing.T) {
		records, err := store.Query(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "r3", records[0].ID)
		assert.Equal(t, "r1", records[2].ID)
	})

	t.Run("time window", func(t *testing.T) {
		records, err := store.Query(ctx, Filter{Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "r2", records[0].ID)
	})

	t.Run("limit truncates", func(t *testing.T) {
		records, err := store.Query(ctx, Filter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("no match returns empty slice", func(t *testing.T) {
		records, err := store.Query(ctx, Filter{EventType: "doctor.created"})
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestMemoryStoreQueryDefaultLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	for i := 0; i < DefaultQueryLimit+20; i++ {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, store.Append(ctx, seedRecord(id, "appointment.created", "appointment.created", "", base.Add(time.Duration(i)*time.Second))))
	}

	records, err := store.Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, records, DefaultQueryLimit)
}

func TestMemoryStoreGetByCorrelation(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	// Appended out of timestamp order on purpose.
	require.NoError(t, store.Append(ctx, seedRecord("r2", "appointment.created", "appointment.created", "c1", base.Add(time.Minute))))
	require.NoError(t, store.Append(ctx, seedRecord("r1", "appointment.create.command", "appointment.create.command", "c1", base)))
	require.NoError(t, store.Append(ctx, seedRecord("r3", "patient.created", "patient.created", "other", base)))

	records, err := store.GetByCorrelation(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, "r2", records[1].ID)

	none, err := store.GetByCorrelation(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStoreGetBySubjectPrefix(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, seedRecord("r1", "appointment.created", "appointment.created", "", base)))
	require.NoError(t, store.Append(ctx, seedRecord("r2", "appointment.cancelled", "appointment.cancelled", "", base.Add(time.Minute))))
	require.NoError(t, store.Append(ctx, seedRecord("r3", "patient.created", "patient.created", "", base)))

	records, err := store.GetBySubjectPrefix(ctx, "appointment.", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r2", records[0].ID)

	records, err = store.GetBySubjectPrefix(ctx, "appointment.", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r2", records[0].ID)
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, seedRecord("r1", "appointment.created", "appointment.created", "", base)))
	require.NoError(t, store.Append(ctx, seedRecord("r2", "appointment.created", "appointment.created", "", base)))
	require.NoError(t, store.Append(ctx, seedRecord("r3", "patient.created", "patient.created", "", base)))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.BySubject["appointment.created"])
	assert.Equal(t, int64(1), stats.ByEventType["patient.created"])
}

func TestMemoryStorePurge(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, seedRecord("r1", "appointment.created", "appointment.created", "c1", base)))
	require.NoError(t, store.Append(ctx, seedRecord("r2", "patient.created", "patient.created", "c1", base)))

	removed, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	_, err = store.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	records, err := store.GetByCorrelation(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMemoryStoreRotation(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	store := NewMemoryStore(WithMaxRecords(10))
	for i := 0; i < 11; i++ {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, store.Append(ctx, seedRecord(id, "appointment.created", "appointment.created", "c1", base.Add(time.Duration(i)*time.Second))))
	}

	// The cap forced the oldest fifth (two records) out before the eleventh
	// append, leaving nine survivors plus the newcomer.
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stats.Total)

	_, err = store.Get(ctx, "r0")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = store.Get(ctx, "r1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	got, err := store.Get(ctx, "r10")
	require.NoError(t, err)
	assert.Equal(t, "r10", got.ID)

	records, err := store.GetByCorrelation(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, records, 9)
}
