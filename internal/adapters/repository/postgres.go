package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/okian/pausemap/internal/domain/model"
	"github.com/okian/pausemap/internal/domain/week"
	"github.com/okian/pausemap/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS weekly_summaries (
	week       DATE PRIMARY KEY,
	metrics    JSONB NOT NULL,
	run_id     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id          TEXT PRIMARY KEY,
	window_from DATE NOT NULL,
	window_to   DATE NOT NULL,
	weeks       INTEGER NOT NULL,
	series      INTEGER NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);`

const (
	upsertSummary = `
		INSERT INTO weekly_summaries (week, metrics, run_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (week) DO UPDATE SET
			metrics = EXCLUDED.metrics,
			run_id = EXCLUDED.run_id,
			updated_at = now()`
	insertRun = `
		INSERT INTO pipeline_runs (id, window_from, window_to, weeks, series, output, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selectRange = `SELECT week, metrics FROM weekly_summaries WHERE week BETWEEN $1 AND $2 ORDER BY week`
	selectWeek  = `SELECT week, metrics FROM weekly_summaries WHERE week = $1`
	selectCount = `SELECT COUNT(*) FROM weekly_summaries`
	selectLast  = `
		SELECT id, window_from, window_to, weeks, series, output, started_at, finished_at
		FROM pipeline_runs ORDER BY finished_at DESC LIMIT 1`
)

// PostgresStore keeps summaries in PostgreSQL with metrics as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to dsn, pings and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Save writes the run and every summary in one transaction.
func (s *PostgresStore) Save(ctx context.Context, run model.Run, summaries []model.Summary) (err error) {
	start := time.Now()
	for _, sum := range summaries {
		if sum.Week.IsZero() {
			return ErrInvalidWeek
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertRun,
		run.ID, run.From, run.To, run.Weeks, run.Series, run.Output, run.StartedAt, run.FinishedAt); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	for _, sum := range summaries {
		var payload []byte
		payload, err = json.Marshal(sum.Metrics)
		if err != nil {
			return fmt.Errorf("encode metrics for %s: %w", sum.Date, err)
		}
		if _, err = tx.ExecContext(ctx, upsertSummary, week.Start(sum.Week), payload, run.ID); err != nil {
			return fmt.Errorf("upsert %s: %w", week.Format(sum.Week), err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	metrics.RecordRepositoryWriteLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

func (s *PostgresStore) Range(ctx context.Context, from, to time.Time) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx, selectRange, week.Start(from), to)
	if err != nil {
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Summary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, w time.Time) (model.Summary, error) {
	sum, err := scanSummary(s.db.QueryRowContext(ctx, selectWeek, week.Start(w)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Summary{}, ErrNotFound
	}
	return sum, err
}

func (s *PostgresStore) LastRun(ctx context.Context) (model.Run, error) {
	var r model.Run
	err := s.db.QueryRowContext(ctx, selectLast).Scan(
		&r.ID, &r.From, &r.To, &r.Weeks, &r.Series, &r.Output, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("query last run: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, selectCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	metrics.UpdateRepositoryRecords(n)
	return n, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (model.Summary, error) {
	var (
		w       time.Time
		payload []byte
	)
	if err := row.Scan(&w, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Summary{}, err
		}
		return model.Summary{}, fmt.Errorf("scan summary: %w", err)
	}
	var m model.Metrics
	if err := json.Unmarshal(payload, &m); err != nil {
		return model.Summary{}, fmt.Errorf("decode metrics for %s: %w", week.Format(w), err)
	}
	w = week.Start(w)
	return model.Summary{Week: w, Date: week.Format(w), Metrics: m}, nil
}
