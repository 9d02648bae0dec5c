// Package store archives finished scene runs.
//
// Two backends implement [Store]: [Postgres] on a pgx connection pool and
// [SQLite] on a local database file. Both write one scene_runs row per run
// and one scene_entries row per transcript entry, keyed by run ID and
// transcript position.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/sceneforge/internal/scene"
)

// ErrNotFound is returned when a run ID is not in the archive.
var ErrNotFound = errors.New("store: run not found")

// Store persists scene results. Implementations are safe for concurrent use.
type Store interface {
	// SaveResult writes res and its entries atomically. Saving the same run
	// twice replaces the earlier copy.
	SaveResult(ctx context.Context, res scene.Result) error

	// Run returns the stored metadata of a run.
	Run(ctx context.Context, runID string) (Run, error)

	// Entries returns the transcript of a run in order.
	Entries(ctx context.Context, runID string) ([]scene.Entry, error)

	// Runs lists the most recent runs of a scene, newest first. A limit of
	// zero or less returns every run.
	Runs(ctx context.Context, sceneID string, limit int) ([]Run, error)

	Ping(ctx context.Context) error
	Close() error
}

// Run is the stored summary of one scene run.
type Run struct {
	Success  bool
	Err      *scene.Error
	Metadata scene.Metadata
}

// runRow is the column set of scene_runs shared by both backends.
type runRow struct {
	RunID      string
	SceneID    string
	Success    bool
	Reason     string
	TotalBeats int
	ErrCode    string
	ErrMessage string
	Transcript string
	Metadata   string
	StartedAt  time.Time
	FinishedAt time.Time
}

func newRunRow(res scene.Result) (runRow, error) {
	if res.Metadata.RunID == "" {
		return runRow{}, errors.New("store: result has no run id")
	}
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return runRow{}, fmt.Errorf("store: encode metadata: %w", err)
	}
	r := runRow{
		RunID:      res.Metadata.RunID,
		SceneID:    res.Metadata.SceneID,
		Success:    res.Success,
		Reason:     string(res.Metadata.CompletionReason),
		TotalBeats: res.Metadata.TotalBeats,
		Transcript: res.Transcript,
		Metadata:   string(meta),
		StartedAt:  res.Metadata.StartedAt,
		FinishedAt: res.Metadata.FinishedAt,
	}
	if res.Err != nil {
		r.ErrCode = string(res.Err.Code)
		r.ErrMessage = res.Err.Message
	}
	return r, nil
}

func (r runRow) run() (Run, error) {
	out := Run{Success: r.Success}
	if err := json.Unmarshal([]byte(r.Metadata), &out.Metadata); err != nil {
		return Run{}, fmt.Errorf("store: decode metadata of run %q: %w", r.RunID, err)
	}
	if r.ErrCode != "" {
		out.Err = &scene.Error{Code: scene.ErrorCode(r.ErrCode), Message: r.ErrMessage}
	}
	return out, nil
}
