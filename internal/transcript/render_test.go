package transcript_test

import (
	"testing"

	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/transcript"
)

func TestRenderEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry scene.Entry
		want  string
	}{
		{
			name: "full speak",
			entry: scene.Dialog{
				Speaker: "alice", Action: scene.ActionSpeak, Target: "bob", Tone: "frustrated",
				Nonverbal: "slams the table", Content: "You never paid!", BeatIndex: 2,
			},
			want: `[beat 2] alice (to bob, frustrated) *slams the table*: "You never paid!"`,
		},
		{
			name: "interrupt with phrase",
			entry: scene.Dialog{
				Speaker: "bob", Action: scene.ActionInterrupt, Tone: "angry",
				InterruptAfter: "never paid", Content: "That's a lie!", BeatIndex: 2,
			},
			want: `[beat 2] bob interrupts after "never paid" (angry): "That's a lie!"`,
		},
		{
			name: "interrupt without phrase",
			entry: scene.Dialog{
				Speaker: "bob", Action: scene.ActionInterrupt, Tone: "angry", Content: "Stop!", BeatIndex: 1,
			},
			want: `[beat 1] bob interrupts (angry): "Stop!"`,
		},
		{
			name: "react without content",
			entry: scene.Dialog{
				Speaker: "carol", Action: scene.ActionReact, Tone: "amused", Nonverbal: "raises an eyebrow", BeatIndex: 2,
			},
			want: `[beat 2] carol reacts (amused) *raises an eyebrow*`,
		},
		{
			name:  "world event",
			entry: scene.WorldEvent{Description: "Thunder rolls outside."},
			want:  `[beat 0] ~ Thunder rolls outside.`,
		},
		{
			name:  "system notice",
			entry: scene.SystemNotice{Message: "dave could not respond this beat", BeatIndex: 3},
			want:  `[beat 3] [system] dave could not respond this beat`,
		},
		{
			name:  "nil",
			entry: nil,
			want:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := transcript.RenderEntry(tc.entry); got != tc.want {
				t.Errorf("RenderEntry\n got  %s\n want %s", got, tc.want)
			}
		})
	}
}

func TestRender_Lines(t *testing.T) {
	t.Parallel()

	if got := transcript.Render(nil); got != "" {
		t.Errorf("Render(nil) = %q, want empty", got)
	}

	entries := []scene.Entry{
		scene.WorldEvent{Description: "Rain."},
		scene.Dialog{Speaker: "alice", Action: scene.ActionSpeak, Tone: "calm", Content: "Evening."},
	}
	want := "[beat 0] ~ Rain.\n[beat 0] alice (calm): \"Evening.\""
	if got := transcript.Render(entries); got != want {
		t.Errorf("Render\n got  %q\n want %q", got, want)
	}
}

func TestLog_RenderRecent(t *testing.T) {
	t.Parallel()
	l := transcript.New(0)
	_ = l.Append(
		scene.WorldEvent{Description: "Rain."},
		scene.Dialog{Speaker: "alice", Action: scene.ActionSpeak, Tone: "calm", Content: "Evening."},
	)
	if got, want := l.RenderRecent(1), `[beat 0] alice (calm): "Evening."`; got != want {
		t.Errorf("RenderRecent(1) = %q, want %q", got, want)
	}
}
