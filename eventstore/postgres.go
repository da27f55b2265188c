package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// OpenPostgres opens and pings a Postgres database.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// PostgresStore is the durable Store backend, one append-only table with
// indexes on subject, event_type, and correlation_id.
type PostgresStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPostgresStore creates a store over an open gorm handle.
func NewPostgresStore(db *gorm.DB, logger *slog.Logger) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// Migrate creates the stored_events table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&storedEventModel{}); err != nil {
		return fmt.Errorf("failed to migrate stored_events: %w", err)
	}
	return nil
}

// Append stores one record. A duplicate id insert is reported as a conflict
// rather than silently swallowed; ingestion assigns fresh ids, so hitting
// this means a caller bug.
func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	if record.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	row := modelFromRecord(record)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("duplicate record id %s: %w", record.ID, err)
		}
		return s.logError("append", err, "recordId", record.ID, "subject", record.Subject)
	}
	return nil
}

// Get returns the record with the given id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	var row storedEventModel
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return Record{}, s.logError("get", err, "recordId", id)
	}
	return row.toRecord(), nil
}

// Query returns records matching the filter, newest claimed timestamp first.
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	tx := s.db.WithContext(ctx).Model(&storedEventModel{})
	if filter.Subject != "" {
		tx = tx.Where("subject = ?", filter.Subject)
	}
	if filter.EventType != "" {
		tx = tx.Where("event_type = ?", filter.EventType)
	}
	if filter.CorrelationID != "" {
		tx = tx.Where("correlation_id = ?", filter.CorrelationID)
	}
	if !filter.Start.IsZero() {
		tx = tx.Where("timestamp >= ?", filter.Start.UTC())
	}
	if !filter.End.IsZero() {
		tx = tx.Where("timestamp <= ?", filter.End.UTC())
	}

	var rows []storedEventModel
	if err := tx.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, s.logError("query", err, "limit", limit)
	}
	return toRecords(rows), nil
}

// GetByCorrelation returns records sharing the correlation id, ascending by
// claimed timestamp.
func (s *PostgresStore) GetByCorrelation(ctx context.Context, correlationID string) ([]Record, error) {
	var rows []storedEventModel
	if err := s.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("timestamp ASC").
		Find(&rows).Error; err != nil {
		return nil, s.logError("get_by_correlation", err, "correlationId", correlationID)
	}
	return toRecords(rows), nil
}

// GetBySubjectPrefix returns records whose subject starts with prefix,
// newest claimed timestamp first.
func (s *PostgresStore) GetBySubjectPrefix(ctx context.Context, prefix string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultPrefixLimit
	}

	var rows []storedEventModel
	if err := s.db.WithContext(ctx).
		Where("subject LIKE ?", escapeLike(prefix)+"%").
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, s.logError("get_by_subject_prefix", err, "prefix", prefix)
	}
	return toRecords(rows), nil
}

// Stats returns aggregate counts over the whole log.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		BySubject:   make(map[string]int64),
		ByEventType: make(map[string]int64),
	}

	if err := s.db.WithContext(ctx).
		Model(&storedEventModel{}).
		Count(&stats.Total).Error; err != nil {
		return Stats{}, s.logError("stats_total", err)
	}

	type groupCount struct {
		Key   string
		Count int64
	}

	var bySubject []groupCount
	if err := s.db.WithContext(ctx).
		Model(&storedEventModel{}).
		Select("subject AS key, COUNT(*) AS count").
		Group("subject").
		Scan(&bySubject).Error; err != nil {
		return Stats{}, s.logError("stats_by_subject", err)
	}
	for _, row := range bySubject {
		stats.BySubject[row.Key] = row.Count
	}

	var byEventType []groupCount
	if err := s.db.WithContext(ctx).
		Model(&storedEventModel{}).
		Select("event_type AS key, COUNT(*) AS count").
		Group("event_type").
		Scan(&byEventType).Error; err != nil {
		return Stats{}, s.logError("stats_by_event_type", err)
	}
	for _, row := range byEventType {
		stats.ByEventType[row.Key] = row.Count
	}

	return stats, nil
}

// Purge deletes all records.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&storedEventModel{})
	if result.Error != nil {
		return 0, s.logError("purge", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *PostgresStore) logError(op string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+4)
	fields = append(fields, "op", op, "error", err.Error())
	fields = append(fields, attrs...)
	s.logger.Error("event store operation failed", fields...)
	return fmt.Errorf("event store %s failed: %w", op, err)
}

type storedEventModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	Subject       string    `gorm:"column:subject;index"`
	EventType     string    `gorm:"column:event_type;index"`
	EventData     []byte    `gorm:"column:event_data"`
	CorrelationID string    `gorm:"column:correlation_id;index"`
	Timestamp     time.Time `gorm:"column:timestamp;index"`
	SourceService string    `gorm:"column:source_service"`
	StoredAt      time.Time `gorm:"column:stored_at"`
}

func (storedEventModel) TableName() string {
	return "stored_events"
}

func modelFromRecord(record Record) storedEventModel {
	return storedEventModel{
		ID:            record.ID,
		Subject:       record.Subject,
		EventType:     record.EventType,
		EventData:     record.EventData,
		CorrelationID: record.CorrelationID,
		Timestamp:     record.Timestamp.UTC(),
		SourceService: record.SourceService,
		StoredAt:      record.StoredAt.UTC(),
	}
}

func (m storedEventModel) toRecord() Record {
	return Record{
		ID:            m.ID,
		Subject:       m.Subject,
		EventType:     m.EventType,
		EventData:     append([]byte(nil), m.EventData...),
		CorrelationID: m.CorrelationID,
		Timestamp:     m.Timestamp.UTC(),
		SourceService: m.SourceService,
		StoredAt:      m.StoredAt.UTC(),
	}
}

func toRecords(rows []storedEventModel) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
