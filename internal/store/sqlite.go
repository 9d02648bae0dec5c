package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/sceneforge/internal/scene"
)

var _ Store = (*SQLite)(nil)

// Timestamps are stored as Unix nanoseconds so they round-trip exactly.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scene_runs (
    run_id        TEXT     PRIMARY KEY,
    scene_id      TEXT     NOT NULL,
    success       INTEGER  NOT NULL,
    reason        TEXT     NOT NULL DEFAULT '',
    total_beats   INTEGER  NOT NULL DEFAULT 0,
    error_code    TEXT     NOT NULL DEFAULT '',
    error_message TEXT     NOT NULL DEFAULT '',
    transcript    TEXT     NOT NULL DEFAULT '',
    metadata      TEXT     NOT NULL,
    started_ns    INTEGER  NOT NULL,
    finished_ns   INTEGER  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scene_runs_scene_started
    ON scene_runs (scene_id, started_ns DESC);

CREATE TABLE IF NOT EXISTS scene_entries (
    run_id          TEXT     NOT NULL REFERENCES scene_runs (run_id) ON DELETE CASCADE,
    seq             INTEGER  NOT NULL,
    kind            TEXT     NOT NULL,
    beat            INTEGER  NOT NULL,
    ts_ns           INTEGER  NOT NULL,
    speaker         TEXT     NOT NULL DEFAULT '',
    action          TEXT     NOT NULL DEFAULT '',
    target          TEXT     NOT NULL DEFAULT '',
    tone            TEXT     NOT NULL DEFAULT '',
    content         TEXT     NOT NULL DEFAULT '',
    nonverbal       TEXT     NOT NULL DEFAULT '',
    interrupt_after TEXT     NOT NULL DEFAULT '',
    text            TEXT     NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, seq)
);
`

// SQLite is a [Store] backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path with WAL journaling, a
// busy timeout, and foreign keys enabled, then creates the schema if needed.
// The path ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite %s: migrate: %w", path, err)
	}
	return &SQLite{db: db}, nil
}

// SaveResult implements [Store].
func (s *SQLite) SaveResult(ctx context.Context, res scene.Result) (err error) {
	row, err := newRunRow(res)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM scene_entries WHERE run_id = ?`, row.RunID); err != nil {
		return fmt.Errorf("store: sqlite: clear entries: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM scene_runs WHERE run_id = ?`, row.RunID); err != nil {
		return fmt.Errorf("store: sqlite: clear run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO scene_runs
		    (run_id, scene_id, success, reason, total_beats, error_code, error_message,
		     transcript, metadata, started_ns, finished_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.RunID, row.SceneID, row.Success, row.Reason, row.TotalBeats,
		row.ErrCode, row.ErrMessage, row.Transcript, row.Metadata,
		unixNano(row.StartedAt), unixNano(row.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("store: sqlite: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scene_entries
		    (run_id, seq, kind, beat, ts_ns, speaker, action, target, tone, content,
		     nonverbal, interrupt_after, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: sqlite: prepare entry insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range scene.Records(res.Entries) {
		_, err = stmt.ExecContext(ctx,
			row.RunID, r.Seq, string(r.Kind), r.Beat, unixNano(r.Timestamp), r.Speaker,
			string(r.Action), r.Target, r.Tone, r.Content, r.Nonverbal,
			r.InterruptAfter, r.Text,
		)
		if err != nil {
			return fmt.Errorf("store: sqlite: insert entry %d: %w", r.Seq, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: sqlite: commit: %w", err)
	}
	return nil
}

// Run implements [Store].
func (s *SQLite) Run(ctx context.Context, runID string) (Run, error) {
	var r runRow
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, success, error_code, error_message, metadata
		FROM   scene_runs
		WHERE  run_id = ?`, runID).
		Scan(&r.RunID, &r.Success, &r.ErrCode, &r.ErrMessage, &r.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %q", ErrNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: sqlite: get run: %w", err)
	}
	return r.run()
}

// Entries implements [Store].
func (s *SQLite) Entries(ctx context.Context, runID string) ([]scene.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, beat, ts_ns, speaker, action, target, tone, content,
		       nonverbal, interrupt_after, text
		FROM   scene_entries
		WHERE  run_id = ?
		ORDER  BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: get entries: %w", err)
	}
	defer rows.Close()

	var entries []scene.Entry
	for rows.Next() {
		var (
			r            scene.EntryRecord
			kind, action string
			ts           int64
		)
		if err := rows.Scan(&r.Seq, &kind, &r.Beat, &ts, &r.Speaker, &action,
			&r.Target, &r.Tone, &r.Content, &r.Nonverbal, &r.InterruptAfter, &r.Text); err != nil {
			return nil, fmt.Errorf("store: sqlite: scan entry: %w", err)
		}
		r.Kind, r.Action, r.Timestamp = scene.EntryKind(kind), scene.Action(action), fromUnixNano(ts)
		entries = append(entries, scene.FromRecord(r))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sqlite: iterate entries: %w", err)
	}
	return entries, nil
}

// Runs implements [Store].
func (s *SQLite) Runs(ctx context.Context, sceneID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, success, error_code, error_message, metadata
		FROM   scene_runs
		WHERE  scene_id = ?
		ORDER  BY started_ns DESC
		LIMIT  ?`, sceneID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r runRow
		if err := rows.Scan(&r.RunID, &r.Success, &r.ErrCode, &r.ErrMessage, &r.Metadata); err != nil {
			return nil, fmt.Errorf("store: sqlite: scan run: %w", err)
		}
		run, err := r.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sqlite: iterate runs: %w", err)
	}
	return runs, nil
}

// Ping implements [Store].
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements [Store].
func (s *SQLite) Close() error {
	return s.db.Close()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
