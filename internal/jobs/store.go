// Package jobs owns the Postgres-backed JobExecution log: one row per
// scheduler tick's fire or memory-extraction run, for local operator
// visibility independent of the REST Data Plane. Grounded on the same
// sql.DB idiom as internal/storage.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/vladmesh/secretary/pkg/models"
)

// ExecutionStore records the lifecycle of one job run.
type ExecutionStore interface {
	Start(ctx context.Context, jobID, jobKind string) (models.JobExecution, error)
	Finish(ctx context.Context, execID int64, status string, errMsg string) error
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

// PostgresStore is an ExecutionStore backed by a real Postgres table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a connection using dsn.
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

func newPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Start inserts a "running" row and returns it with its assigned ID.
func (s *PostgresStore) Start(ctx context.Context, jobID, jobKind string) (models.JobExecution, error) {
	exec := models.JobExecution{
		JobID:     jobID,
		JobKind:   jobKind,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO job_execution (job_id, job_kind, status, started_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, exec.JobID, exec.JobKind, exec.Status, exec.StartedAt).Scan(&exec.ID)
	if err != nil {
		return models.JobExecution{}, fmt.Errorf("insert job_execution: %w", err)
	}
	return exec, nil
}

// Finish updates a started row with its terminal status.
func (s *PostgresStore) Finish(ctx context.Context, execID int64, status string, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_execution SET status = $1, finished_at = $2, error = $3 WHERE id = $4
	`, status, time.Now().UTC(), errMsg, execID)
	if err != nil {
		return fmt.Errorf("update job_execution %d: %w", execID, err)
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

// NoopStore discards every execution record; used when LocalDBConfig.DSN
// is empty.
type NoopStore struct{}

func (NoopStore) Start(ctx context.Context, jobID, jobKind string) (models.JobExecution, error) {
	return models.JobExecution{JobID: jobID, JobKind: jobKind, Status: "running", StartedAt: time.Now().UTC()}, nil
}
func (NoopStore) Finish(ctx context.Context, execID int64, status string, errMsg string) error {
	return nil
}
func (NoopStore) Close() error { return nil }
