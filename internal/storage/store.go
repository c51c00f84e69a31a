// Package storage owns the Postgres tables this service writes to
// directly, never through the REST Data Plane: the append-only
// QueueMessageLog used for queue-processing observability (spec §3).
// Grounded on the teacher's internal/canvas CockroachStore — same
// sql.Open/Ping/pool-tuning shape, reused for a different table.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/vladmesh/secretary/pkg/models"
)

// QueueLogStore records the outcome of processing one queue message.
type QueueLogStore interface {
	RecordOutcome(ctx context.Context, log models.QueueMessageLog) error
	Close() error
}

// Config tunes the underlying connection pool.
type Config struct {
	MaxOpenConns int
	MaxIdleConns int
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	return c
}

// PostgresStore is a QueueLogStore backed by a real Postgres table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a connection using dsn. An empty
// dsn is a caller error — use NoopStore for a disabled local DB.
func NewPostgresStore(dsn string, cfg Config) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	cfg = cfg.withDefaults()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// newPostgresStoreFromDB wraps an already-open *sql.DB, used by tests
// to inject a sqlmock connection.
func newPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// RecordOutcome inserts one observability row for a processed message.
func (s *PostgresStore) RecordOutcome(ctx context.Context, log models.QueueMessageLog) error {
	if log.RecordedAt.IsZero() {
		log.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_message_log
			(stream, message_id, user_id, outcome, retry_count, error_type, error_message, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, log.Stream, log.MessageID, log.UserID, log.Outcome, log.RetryCount, log.ErrorType, log.ErrorMessage, log.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert queue_message_log: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NoopStore discards every outcome; used when LocalDBConfig.DSN is
// empty so the queue and scheduler code paths don't need a nil check.
type NoopStore struct{}

func (NoopStore) RecordOutcome(ctx context.Context, log models.QueueMessageLog) error { return nil }
func (NoopStore) Close() error                                                       { return nil }
