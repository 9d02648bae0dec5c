package health

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/sceneforge/internal/moderator"
	"github.com/MrWong99/sceneforge/internal/scene"
)

// ProgressSnapshot is the /status body.
type ProgressSnapshot struct {
	SceneID    string                 `json:"scene_id,omitempty"`
	RunID      string                 `json:"run_id,omitempty"`
	Running    bool                   `json:"running"`
	Beat       int                    `json:"beat"`
	MaxBeats   int                    `json:"max_beats"`
	Entries    int                    `json:"entries"`
	Errors     int                    `json:"errors"`
	Warnings   int                    `json:"warnings"`
	LastBeatMS int64                  `json:"last_beat_ms"`
	Reason     scene.CompletionReason `json:"completion_reason,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Progress tracks the running scene for /status. It observes the moderator
// beat by beat. Safe for concurrent use.
type Progress struct {
	mu   sync.Mutex
	snap ProgressSnapshot
	now  func() time.Time
}

var _ moderator.Observer = (*Progress)(nil)

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	return &Progress{now: time.Now}
}

// Begin resets the tracker for a new run of cfg.
func (p *Progress) Begin(cfg scene.Config) {
	cfg = cfg.WithDefaults()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = ProgressSnapshot{
		SceneID:   cfg.ID,
		Running:   true,
		MaxBeats:  cfg.MaxBeats,
		UpdatedAt: p.now(),
	}
}

// BeatCompleted implements moderator.Observer.
func (p *Progress) BeatCompleted(_ context.Context, r moderator.BeatReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.RunID = r.RunID
	p.snap.Beat = r.Beat + 1
	p.snap.Entries += len(r.Entries)
	p.snap.Errors += len(r.Errors)
	p.snap.Warnings += len(r.Warnings)
	p.snap.LastBeatMS = r.Duration.Milliseconds()
	p.snap.UpdatedAt = p.now()
	return nil
}

// Finish marks the run as done with res's outcome.
func (p *Progress) Finish(res scene.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Running = false
	p.snap.RunID = res.Metadata.RunID
	p.snap.Beat = res.Metadata.TotalBeats
	p.snap.Entries = len(res.Entries)
	p.snap.Reason = res.Metadata.CompletionReason
	p.snap.UpdatedAt = p.now()
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}
