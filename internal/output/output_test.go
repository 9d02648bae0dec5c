package output_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/sceneforge/internal/output"
	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/transcript"
)

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func sampleResult() scene.Result {
	entries := []scene.Entry{
		scene.WorldEvent{Description: "The fire dies down.", BeatIndex: 0, Timestamp: t0},
		scene.Dialog{Speaker: "alice", Action: scene.ActionSpeak, Target: "bob", Tone: "frustrated",
			Content: "Pay your tab.", BeatIndex: 0, Timestamp: t0.Add(time.Second)},
		scene.SystemNotice{Message: "carol could not respond this beat", BeatIndex: 0, Timestamp: t0.Add(2 * time.Second)},
		scene.Dialog{Speaker: "bob", Action: scene.ActionSpeak, Tone: "calm", Nonverbal: "sighs",
			Content: "I'll pay.", BeatIndex: 1, Timestamp: t0.Add(3 * time.Second)},
	}
	return scene.Result{
		Success:    true,
		Transcript: transcript.Render(entries),
		Entries:    entries,
		Metadata: scene.Metadata{
			SceneID:          "Tavern Night/1",
			RunID:            "0b7c1f7e-run",
			TotalBeats:       2,
			ParticipantCount: 3,
			GoalAchieved:     true,
			CompletionReason: scene.ReasonGoalAchieved,
			OracleReason:     `bob said "I'll pay"`,
			Usage:            &scene.Usage{PromptTokens: 90, CompletionTokens: 30, TotalTokens: 120},
			Errors:           []scene.BeatError{{Beat: 0, Participant: "carol", Reason: "timeout"}},
			Warnings:         []scene.ParseWarning{{Beat: 1, Participant: "bob", Warning: "missing TONE field"}},
			StartedAt:        t0,
			FinishedAt:       t0.Add(4 * time.Second),
		},
	}
}

func TestFileStem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		scene, run, want string
	}{
		{"tavern", "abc", "tavern-abc"},
		{"Tavern Night/1", "abc", "Tavern-Night-1-abc"},
		{"../../etc/passwd", "r", "etc-passwd-r"},
		{"", "r", "scene-r"},
		{"tavern", "", "tavern"},
		{"Überfall", "r", "berfall-r"},
	}
	for _, tc := range tests {
		got := output.FileStem(scene.Metadata{SceneID: tc.scene, RunID: tc.run})
		if got != tc.want {
			t.Errorf("FileStem(%q, %q) = %q, want %q", tc.scene, tc.run, got, tc.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := output.New(""); err == nil {
		t.Error("expected error for empty directory")
	}
	if _, err := output.New(t.TempDir(), "pdf"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriter_Write(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "out")
	w, err := output.New(dir)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := w.Write(context.Background(), sampleResult())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := []string{
		filepath.Join(dir, "Tavern-Night-1-0b7c1f7e-run.md"),
		filepath.Join(dir, "Tavern-Night-1-0b7c1f7e-run.json"),
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("paths = %v, want %v", paths, want)
	}

	data, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatal(err)
	}
	var doc output.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("json output does not decode: %v", err)
	}
	if !doc.Success || doc.Metadata.TotalBeats != 2 || len(doc.Entries) != 4 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Entries[1].Kind != scene.KindDialog || doc.Entries[1].Speaker != "alice" || doc.Entries[1].Seq != 1 {
		t.Errorf("entries[1] = %+v", doc.Entries[1])
	}
	if doc.Entries[2].Kind != scene.KindSystemNotice || doc.Entries[2].Text == "" {
		t.Errorf("entries[2] = %+v", doc.Entries[2])
	}
}

func TestWriter_SingleFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, err := output.New(dir, output.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	paths, err := w.Write(context.Background(), sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || filepath.Ext(paths[0]) != ".json" {
		t.Errorf("paths = %v", paths)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.md"))
	if len(matches) != 0 {
		t.Errorf("unexpected markdown files: %v", matches)
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	t.Parallel()
	w, err := output.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Write(ctx, sampleResult()); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	md := string(output.Markdown(sampleResult()))

	for _, want := range []string{
		"# Scene Tavern Night/1",
		"| Outcome | goal_achieved: bob said \"I'll pay\" |",
		"| Tokens | 120 (90 prompt, 30 completion) |",
		"| Duration | 4s |",
		"### Beat 1\n\n- ~ The fire dies down.\n- alice (to bob, frustrated): \"Pay your tab.\"\n- [system] carol could not respond this beat\n",
		"### Beat 2\n\n- bob (calm) *sighs*: \"I'll pay.\"\n",
		"## Errors\n\n- beat 1, carol: timeout\n",
		"## Parse Warnings\n\n- beat 2, bob: missing TONE field\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n---\n%s", want, md)
		}
	}
	for _, absent := range []string{"## Error\n", "## Trace"} {
		if strings.Contains(md, absent) {
			t.Errorf("markdown unexpectedly contains %q", absent)
		}
	}
}

func TestMarkdown_FailedRun(t *testing.T) {
	t.Parallel()
	res := scene.Result{
		Metadata: scene.Metadata{SceneID: "x", CompletionReason: scene.ReasonError, Trace: []string{"beat 0: alice speak"}},
		Err:      &scene.Error{Code: scene.CodeConfigInvalid, Message: "prompt is required"},
	}
	md := string(output.Markdown(res))
	for _, want := range []string{
		"| Outcome | error (failed) |",
		"## Error\n\n`config_invalid`: prompt is required\n",
		"_Nothing was said._",
		"## Trace\n\n```text\nbeat 0: alice speak\n```\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n---\n%s", want, md)
		}
	}
	if strings.Contains(md, "| Tokens |") {
		t.Error("tokens row rendered without usage")
	}
}
