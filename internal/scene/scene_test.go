package scene

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		ID:           "tavern-brawl",
		Prompt:       "Two regulars argue over an unpaid debt.",
		Participants: []string{"alice", "bob"},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing id", mutate: func(c *Config) { c.ID = "" }, wantErr: "id is required"},
		{name: "missing prompt", mutate: func(c *Config) { c.Prompt = "" }, wantErr: "prompt is required"},
		{name: "no participants", mutate: func(c *Config) { c.Participants = nil }, wantErr: "at least one participant"},
		{name: "empty participant", mutate: func(c *Config) { c.Participants = []string{"alice", ""} }, wantErr: "participants[1] is empty"},
		{name: "negative max beats", mutate: func(c *Config) { c.MaxBeats = -1 }, wantErr: "must be positive"},
		{name: "ratio out of range", mutate: func(c *Config) { c.MidpointRatio = 1.5 }, wantErr: "midpoint ratio"},
		{name: "wrap-up before midpoint", mutate: func(c *Config) { c.MidpointRatio = 0.7; c.WrapUpRatio = 0.5 }, wantErr: "below midpoint"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestConfig_Validate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	err := Config{}.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"id", "prompt", "participant"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err, want)
		}
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	got := cfg.WithDefaults()

	if got.MaxBeats != DefaultMaxBeats {
		t.Errorf("MaxBeats = %d, want %d", got.MaxBeats, DefaultMaxBeats)
	}
	if got.WindowSize != DefaultWindowSize {
		t.Errorf("WindowSize = %d, want %d", got.WindowSize, DefaultWindowSize)
	}
	if got.MidpointRatio != DefaultMidpointRatio || got.WrapUpRatio != DefaultWrapUpRatio {
		t.Errorf("ratios = %v/%v, want defaults", got.MidpointRatio, got.WrapUpRatio)
	}

	got.Participants[0] = "mallory"
	if cfg.Participants[0] != "alice" {
		t.Error("WithDefaults shares the participant slice with the original")
	}
}

func TestConfig_WithDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.MaxBeats = 3
	cfg.WindowSize = 4
	got := cfg.WithDefaults()
	if got.MaxBeats != 3 || got.WindowSize != 4 {
		t.Errorf("got MaxBeats=%d WindowSize=%d, want 3 and 4", got.MaxBeats, got.WindowSize)
	}
}

func TestModeratorNote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		beat, max int
		want      string
	}{
		{0, 10, ""},
		{5, 10, ""},
		{6, 10, NoteMidpoint},
		{7, 10, NoteMidpoint},
		{8, 10, NoteWrapUp},
		{9, 10, NoteWrapUp},
		{29, 50, ""},
		{30, 50, NoteMidpoint},
		{40, 50, NoteWrapUp},
		{3, 0, ""},
	}
	for _, tc := range tests {
		if got := ModeratorNote(tc.beat, tc.max, 0.6, 0.8); got != tc.want {
			t.Errorf("ModeratorNote(%d, %d) = %q, want %q", tc.beat, tc.max, got, tc.want)
		}
	}
}

func TestNewDialog(t *testing.T) {
	t.Parallel()
	at := time.Unix(1000, 0)

	t.Run("silent is rejected", func(t *testing.T) {
		t.Parallel()
		if _, ok := NewDialog("alice", Silent{Annotation{Tone: NeutralTone, Nonverbal: "crosses arms"}}, 0, at); ok {
			t.Fatal("silent event became a dialog entry")
		}
	})

	t.Run("nil is rejected", func(t *testing.T) {
		t.Parallel()
		if _, ok := NewDialog("alice", nil, 0, at); ok {
			t.Fatal("nil event became a dialog entry")
		}
	})

	t.Run("interrupt keeps phrase", func(t *testing.T) {
		t.Parallel()
		ev := Interrupt{
			Annotation: Annotation{Tone: "angry", Nonverbal: "slams table"},
			Target:     "bob",
			After:      "you never",
			Content:    "That's a lie!",
		}
		d, ok := NewDialog("alice", ev, 2, at)
		if !ok {
			t.Fatal("interrupt rejected")
		}
		want := Dialog{
			Speaker: "alice", Action: ActionInterrupt, Target: "bob", Tone: "angry",
			Content: "That's a lie!", Nonverbal: "slams table", InterruptAfter: "you never",
			BeatIndex: 2, Timestamp: at,
		}
		if d != want {
			t.Errorf("got %+v, want %+v", d, want)
		}
	})
}

func TestRecords_RoundTrip(t *testing.T) {
	t.Parallel()
	at := time.Unix(2000, 0).UTC()
	entries := []Entry{
		WorldEvent{Description: "Thunder rolls.", BeatIndex: 0, Timestamp: at},
		Dialog{Speaker: "alice", Action: ActionSpeak, Tone: "calm", Content: "Evening.", BeatIndex: 0, Timestamp: at},
		SystemNotice{Message: "bob could not respond this beat", BeatIndex: 1, Timestamp: at},
	}
	recs := Records(entries)
	for i, r := range recs {
		if r.Seq != i {
			t.Errorf("record %d has seq %d", i, r.Seq)
		}
		if got := FromRecord(r); got != entries[i] {
			t.Errorf("round trip %d: got %+v, want %+v", i, got, entries[i])
		}
	}
}

func TestFromRecord_UnknownAction(t *testing.T) {
	t.Parallel()
	for _, action := range []Action{"", "shout", ActionSilent} {
		got, ok := FromRecord(EntryRecord{Kind: KindDialog, Speaker: "bob", Action: action, Content: "Oi."}).(Dialog)
		if !ok {
			t.Fatalf("action %q: not a dialog", action)
		}
		if got.Action != ActionSpeak || got.Content != "Oi." {
			t.Errorf("action %q: got %+v, want speech", action, got)
		}
	}
}

func TestError_Error(t *testing.T) {
	t.Parallel()
	err := &Error{Code: CodeConfigInvalid, Message: "id is required"}
	if got := err.Error(); got != "config_invalid: id is required" {
		t.Errorf("Error() = %q", got)
	}
}
