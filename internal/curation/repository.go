// Package curation records curator false positives and result clicks in Postgres.
package curation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS false_positives (
	hash       TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 1,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS click_events (
	id         UUID PRIMARY KEY,
	query      TEXT NOT NULL,
	title      TEXT NOT NULL,
	hash       TEXT NOT NULL,
	clicked_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS click_events_hash_idx ON click_events (hash);
`

// NewPool creates and verifies a pgxpool connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// Repository is safe for concurrent use when db is.
type Repository struct {
	db  DB
	now func() time.Time
}

// NewRepository wraps db.
func NewRepository(db DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithClock overrides the time source.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Migrate creates the tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate curation schema: %w", err)
	}
	return nil
}

// RecordFalsePositive inserts hash or bumps its counter and returns the new count.
func (r *Repository) RecordFalsePositive(ctx context.Context, hash, title string) (int, error) {
	now := r.now().UTC()
	var count int
	err := r.db.QueryRow(ctx,
		`INSERT INTO false_positives (hash, title, count, first_seen, last_seen)
		 VALUES ($1, $2, 1, $3, $3)
		 ON CONFLICT (hash) DO UPDATE
		 SET count = false_positives.count + 1,
		     title = EXCLUDED.title,
		     last_seen = EXCLUDED.last_seen
		 RETURNING count`,
		hash, title, now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("upsert false positive %s: %w", hash, err)
	}
	return count, nil
}

// RecordClick stores one click event and returns its id.
func (r *Repository) RecordClick(ctx context.Context, query, title, hash string) (string, error) {
	id := uuid.New()
	_, err := r.db.Exec(ctx,
		`INSERT INTO click_events (id, query, title, hash, clicked_at) VALUES ($1, $2, $3, $4, $5)`,
		id, query, title, hash, r.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert click: %w", err)
	}
	return id.String(), nil
}
