package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/sceneforge/internal/config"
)

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

type changeRecorder struct {
	mu      sync.Mutex
	changes [][2]*config.Config
	seen    chan struct{}
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{seen: make(chan struct{}, 8)}
}

func (r *changeRecorder) onChange(old, new *config.Config) {
	r.mu.Lock()
	r.changes = append(r.changes, [2]*config.Config{old, new})
	r.mu.Unlock()
	r.seen <- struct{}{}
}

func (r *changeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	writeFile(t, path, validYAML, time.Now())

	w, err := config.NewWatcher(path, nil, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if cfg := w.Current(); cfg == nil || cfg.Scene.ID != "tavern" {
		t.Fatalf("Current() = %+v", cfg)
	}
}

func TestWatcher_InvalidInitialConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	writeFile(t, path, "server:\n  log_level: loud\n", time.Now())
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	start := time.Now().Add(-time.Hour)
	writeFile(t, path, validYAML, start)

	rec := newChangeRecorder()
	w, err := config.NewWatcher(path, rec.onChange, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, path, strings.Replace(validYAML, "max_beats: 12", "max_beats: 7", 1), start.Add(time.Minute))

	select {
	case <-rec.seen:
	case <-time.After(3 * time.Second):
		t.Fatal("change not detected")
	}
	rec.mu.Lock()
	old, next := rec.changes[0][0], rec.changes[0][1]
	rec.mu.Unlock()
	if old.Scene.MaxBeats != 12 || next.Scene.MaxBeats != 7 {
		t.Errorf("old=%d new=%d, want 12 -> 7", old.Scene.MaxBeats, next.Scene.MaxBeats)
	}
	if w.Current().Scene.MaxBeats != 7 {
		t.Error("Current() not updated")
	}
}

func TestWatcher_IgnoresInvalidEditAndTouch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	start := time.Now().Add(-time.Hour)
	writeFile(t, path, validYAML, start)

	rec := newChangeRecorder()
	w, err := config.NewWatcher(path, rec.onChange, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, path, "scene: [", start.Add(time.Minute))
	time.Sleep(150 * time.Millisecond)
	writeFile(t, path, validYAML, start.Add(2*time.Minute))
	time.Sleep(150 * time.Millisecond)

	if n := rec.count(); n != 0 {
		t.Errorf("onChange called %d times for an invalid edit and an identical rewrite", n)
	}
	if w.Current().Scene.ID != "tavern" {
		t.Error("Current() lost the last valid config")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "scene.toml")
	writeFile(t, path, validTOML, time.Now())
	w, err := config.NewWatcher(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
