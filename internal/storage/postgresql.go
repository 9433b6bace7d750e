package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS poster_batches (
	id          TEXT PRIMARY KEY,
	identifiers TEXT[] NOT NULL DEFAULT '{}',
	updated_at  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS poster_run_status (
	id                  TEXT PRIMARY KEY,
	run_id              TEXT NOT NULL,
	last_attempt        TIMESTAMPTZ NOT NULL,
	last_successful_run TIMESTAMPTZ,
	status              TEXT NOT NULL,
	error_message       TEXT NOT NULL DEFAULT '',
	fetched             INTEGER NOT NULL DEFAULT 0,
	eligible            INTEGER NOT NULL DEFAULT 0,
	published           INTEGER NOT NULL DEFAULT 0,
	failed              INTEGER NOT NULL DEFAULT 0
)`

// PostgreSQLStorage implements Storage on PostgreSQL via lib/pq
type PostgreSQLStorage struct {
	db *sql.DB
}

// NewPostgreSQLStorage opens the database and creates the tables if needed
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	if cfg.PostgresURI == "" {
		return nil, errors.New("POSTGRES_URI is required for postgresql storage")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	storage, err := newPostgreSQLStorage(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

func newPostgreSQLStorage(ctx context.Context, db *sql.DB) (*PostgreSQLStorage, error) {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &PostgreSQLStorage{db: db}, nil
}

// LoadLastBatch reads the last_batch row
func (p *PostgreSQLStorage) LoadLastBatch(ctx context.Context) (models.PostedBatch, error) {
	var ids []string
	err := p.db.QueryRowContext(ctx,
		`SELECT identifiers FROM poster_batches WHERE id = $1`, lastBatchKey,
	).Scan(pq.Array(&ids))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PostedBatch{}, nil
	}
	if err != nil {
		return models.PostedBatch{}, persistenceError("query last batch", err)
	}
	return models.NewPostedBatch(ids...), nil
}

// SaveLastBatch upserts the last_batch row
func (p *PostgreSQLStorage) SaveLastBatch(ctx context.Context, batch models.PostedBatch) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO poster_batches (id, identifiers, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET identifiers = EXCLUDED.identifiers, updated_at = EXCLUDED.updated_at`,
		lastBatchKey, pq.Array(batch.IDs()), time.Now().UTC(),
	)
	if err != nil {
		return persistenceError("upsert last batch", err)
	}
	return nil
}

// UpdateRunStatus upserts the run status row
func (p *PostgreSQLStorage) UpdateRunStatus(ctx context.Context, s models.RunStatus) error {
	var lastSuccess sql.NullTime
	if !s.LastSuccessfulRun.IsZero() {
		lastSuccess = sql.NullTime{Time: s.LastSuccessfulRun, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO poster_run_status
			(id, run_id, last_attempt, last_successful_run, status, error_message, fetched, eligible, published, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			last_attempt = EXCLUDED.last_attempt,
			last_successful_run = EXCLUDED.last_successful_run,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			fetched = EXCLUDED.fetched,
			eligible = EXCLUDED.eligible,
			published = EXCLUDED.published,
			failed = EXCLUDED.failed`,
		runStatusKey, s.RunID, s.LastAttempt, lastSuccess, s.Status, s.ErrorMessage,
		s.Fetched, s.Eligible, s.Published, s.Failed,
	)
	if err != nil {
		return persistenceError("upsert run status", err)
	}
	return nil
}

// GetRunStatus reads the run status row
func (p *PostgreSQLStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	var (
		s           models.RunStatus
		lastSuccess sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT run_id, last_attempt, last_successful_run, status, error_message, fetched, eligible, published, failed
		FROM poster_run_status WHERE id = $1`, runStatusKey,
	).Scan(&s.RunID, &s.LastAttempt, &lastSuccess, &s.Status, &s.ErrorMessage, &s.Fetched, &s.Eligible, &s.Published, &s.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return neverRunStatus(), nil
	}
	if err != nil {
		return nil, persistenceError("query run status", err)
	}
	if lastSuccess.Valid {
		s.LastSuccessfulRun = lastSuccess.Time
	}
	return &s, nil
}

// Close closes the database pool
func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}
