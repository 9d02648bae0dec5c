package moderator

import (
	"context"
	"time"

	"github.com/MrWong99/sceneforge/internal/oracle"
	"github.com/MrWong99/sceneforge/internal/scene"
)

// BeatReport summarises one finished beat for observers.
type BeatReport struct {
	RunID   string
	SceneID string
	Beat    int

	// Entries are the transcript entries appended during this beat, in
	// transcript order. The first report also carries the opening world
	// events.
	Entries []scene.Entry

	Errors   []scene.BeatError
	Warnings []scene.ParseWarning
	Verdict  oracle.Verdict
	Duration time.Duration
}

// Observer is notified after every beat. BeatCompleted runs on the scene's
// goroutine between beats; a returned error is logged and otherwise ignored.
type Observer interface {
	BeatCompleted(ctx context.Context, report BeatReport) error
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(ctx context.Context, report BeatReport) error

// BeatCompleted calls f.
func (f ObserverFunc) BeatCompleted(ctx context.Context, report BeatReport) error {
	return f(ctx, report)
}
