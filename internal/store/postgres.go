package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/sceneforge/internal/scene"
)

// DB is the subset of [pgxpool.Pool] the Postgres store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Ping(ctx context.Context) error
	Close()
}

var (
	_ DB    = (*pgxpool.Pool)(nil)
	_ Store = (*Postgres)(nil)
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS scene_runs (
    run_id        TEXT         PRIMARY KEY,
    scene_id      TEXT         NOT NULL,
    success       BOOLEAN      NOT NULL,
    reason        TEXT         NOT NULL DEFAULT '',
    total_beats   INTEGER      NOT NULL DEFAULT 0,
    error_code    TEXT         NOT NULL DEFAULT '',
    error_message TEXT         NOT NULL DEFAULT '',
    transcript    TEXT         NOT NULL DEFAULT '',
    metadata      JSONB        NOT NULL,
    started_at    TIMESTAMPTZ  NOT NULL,
    finished_at   TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scene_runs_scene_started
    ON scene_runs (scene_id, started_at DESC);

CREATE TABLE IF NOT EXISTS scene_entries (
    run_id          TEXT         NOT NULL REFERENCES scene_runs (run_id) ON DELETE CASCADE,
    seq             INTEGER      NOT NULL,
    kind            TEXT         NOT NULL,
    beat            INTEGER      NOT NULL,
    ts              TIMESTAMPTZ  NOT NULL,
    speaker         TEXT         NOT NULL DEFAULT '',
    action          TEXT         NOT NULL DEFAULT '',
    target          TEXT         NOT NULL DEFAULT '',
    tone            TEXT         NOT NULL DEFAULT '',
    content         TEXT         NOT NULL DEFAULT '',
    nonverbal       TEXT         NOT NULL DEFAULT '',
    interrupt_after TEXT         NOT NULL DEFAULT '',
    text            TEXT         NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, seq)
);
`

const (
	pgDeleteRun = `DELETE FROM scene_runs WHERE run_id = $1`

	pgInsertRun = `
		INSERT INTO scene_runs
		    (run_id, scene_id, success, reason, total_beats, error_code, error_message,
		     transcript, metadata, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	pgInsertEntry = `
		INSERT INTO scene_entries
		    (run_id, seq, kind, beat, ts, speaker, action, target, tone, content,
		     nonverbal, interrupt_after, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	pgSelectRun = `
		SELECT run_id, success, error_code, error_message, metadata
		FROM   scene_runs
		WHERE  run_id = $1`

	pgSelectEntries = `
		SELECT seq, kind, beat, ts, speaker, action, target, tone, content,
		       nonverbal, interrupt_after, text
		FROM   scene_entries
		WHERE  run_id = $1
		ORDER  BY seq`

	pgSelectRuns = `
		SELECT run_id, success, error_code, error_message, metadata
		FROM   scene_runs
		WHERE  scene_id = $1
		ORDER  BY started_at DESC`
)

// Postgres is a [Store] backed by PostgreSQL.
type Postgres struct {
	db DB
}

// OpenPostgres connects to dsn, verifies the connection, and creates the
// schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: postgres: ping: %w", err)
	}
	s, err := NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres wraps an open connection pool and migrates the schema.
func NewPostgres(ctx context.Context, db DB) (*Postgres, error) {
	if _, err := db.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("store: postgres: migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

// SaveResult implements [Store]. The run and its entries are sent as one
// batch, which PostgreSQL executes in an implicit transaction.
func (s *Postgres) SaveResult(ctx context.Context, res scene.Result) error {
	row, err := newRunRow(res)
	if err != nil {
		return err
	}

	b := &pgx.Batch{}
	b.Queue(pgDeleteRun, row.RunID)
	b.Queue(pgInsertRun,
		row.RunID, row.SceneID, row.Success, row.Reason, row.TotalBeats,
		row.ErrCode, row.ErrMessage, row.Transcript, row.Metadata,
		row.StartedAt, row.FinishedAt,
	)
	for _, r := range scene.Records(res.Entries) {
		b.Queue(pgInsertEntry,
			row.RunID, r.Seq, string(r.Kind), r.Beat, r.Timestamp, r.Speaker,
			string(r.Action), r.Target, r.Tone, r.Content, r.Nonverbal,
			r.InterruptAfter, r.Text,
		)
	}

	if err := s.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("store: postgres: save run %q: %w", row.RunID, err)
	}
	return nil
}

// Run implements [Store].
func (s *Postgres) Run(ctx context.Context, runID string) (Run, error) {
	var r runRow
	err := s.db.QueryRow(ctx, pgSelectRun, runID).
		Scan(&r.RunID, &r.Success, &r.ErrCode, &r.ErrMessage, &r.Metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %q", ErrNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: postgres: get run: %w", err)
	}
	return r.run()
}

// Entries implements [Store].
func (s *Postgres) Entries(ctx context.Context, runID string) ([]scene.Entry, error) {
	rows, err := s.db.Query(ctx, pgSelectEntries, runID)
	if err != nil {
		return nil, fmt.Errorf("store: postgres: get entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (scene.Entry, error) {
		var (
			r            scene.EntryRecord
			kind, action string
		)
		if err := row.Scan(&r.Seq, &kind, &r.Beat, &r.Timestamp, &r.Speaker, &action,
			&r.Target, &r.Tone, &r.Content, &r.Nonverbal, &r.InterruptAfter, &r.Text); err != nil {
			return nil, err
		}
		r.Kind, r.Action = scene.EntryKind(kind), scene.Action(action)
		return scene.FromRecord(r), nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: postgres: scan entries: %w", err)
	}
	return entries, nil
}

// Runs implements [Store].
func (s *Postgres) Runs(ctx context.Context, sceneID string, limit int) ([]Run, error) {
	q, args := pgSelectRuns, []any{sceneID}
	if limit > 0 {
		q += "\n\t\tLIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: postgres: list runs: %w", err)
	}
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Run, error) {
		var r runRow
		if err := row.Scan(&r.RunID, &r.Success, &r.ErrCode, &r.ErrMessage, &r.Metadata); err != nil {
			return Run{}, err
		}
		return r.run()
	})
	if err != nil {
		return nil, fmt.Errorf("store: postgres: scan runs: %w", err)
	}
	return runs, nil
}

// Ping implements [Store].
func (s *Postgres) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close implements [Store].
func (s *Postgres) Close() error {
	s.db.Close()
	return nil
}
