package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/sceneforge/internal/config"
	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/pkg/provider/llm"
	llmmock "github.com/MrWong99/sceneforge/pkg/provider/llm/mock"
)

const validYAML = `
server:
  log_level: debug
  metrics_addr: ":9464"
providers:
  llm:
    name: openai
    model: gpt-4o-mini
  fallbacks:
    - name: ollama
      model: llama3.1
scene:
  id: tavern
  prompt: Alice wants Bob to pay his tab.
  first_responder: alice
  max_beats: 12
  reply_timeout: 45s
  opening_events:
    - The fire dies down.
  oracle:
    kind: phrase
    phrases: ["I'll pay"]
characters:
  - id: alice
    name: Alice
    personality: A sharp-tongued innkeeper.
    behavior_rules: [Never raise your voice first.]
    temperature: 0.8
  - id: bob
    personality: A charming debtor.
output:
  dir: out
store:
  sqlite_path: scenes.db
events:
  brokers: ["localhost:9092"]
`

const validTOML = `
[providers.llm]
name = "anthropic"
model = "claude-3-5-haiku-latest"

[scene]
id = "tavern"
prompt = "Alice wants Bob to pay his tab."
participants = ["alice", "bob"]
reply_timeout = "2m"

[[characters]]
id = "alice"

[[characters]]
id = "bob"
max_tokens = 200
`

func TestLoadFromReader_YAML(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML), config.FormatYAML)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug || cfg.Server.MetricsAddr != ":9464" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Providers.LLM.Model != "gpt-4o-mini" || len(cfg.Providers.Fallbacks) != 1 {
		t.Errorf("providers = %+v", cfg.Providers)
	}
	if got := time.Duration(cfg.Scene.ReplyTimeout); got != 45*time.Second {
		t.Errorf("reply_timeout = %s, want 45s", got)
	}
	if want := []string{"alice", "bob"}; strings.Join(cfg.Scene.Participants, ",") != strings.Join(want, ",") {
		t.Errorf("participants = %v, want %v from characters", cfg.Scene.Participants, want)
	}
	if cfg.Scene.Oracle.Kind != config.OraclePhrase || cfg.Scene.Oracle.Phrases[0] != "I'll pay" {
		t.Errorf("oracle = %+v", cfg.Scene.Oracle)
	}
	if len(cfg.Output.Formats) != 2 {
		t.Errorf("output formats = %v, want both defaults", cfg.Output.Formats)
	}
	if cfg.Events.Topic != config.DefaultEventsTopic {
		t.Errorf("events topic = %q", cfg.Events.Topic)
	}
	if cfg.Telemetry.ServiceName != config.DefaultServiceName {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_TOML(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validTOML), config.FormatTOML)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.LLM.Name != "anthropic" {
		t.Errorf("llm = %+v", cfg.Providers.LLM)
	}
	if got := time.Duration(cfg.Scene.ReplyTimeout); got != 2*time.Minute {
		t.Errorf("reply_timeout = %s, want 2m", got)
	}
	if cfg.Characters[1].MaxTokens != 200 {
		t.Errorf("characters[1] = %+v", cfg.Characters[1])
	}
	if cfg.Scene.MaxBeats != scene.DefaultMaxBeats || cfg.Scene.Oracle.Kind != config.OracleNever {
		t.Errorf("defaults not applied: max_beats=%d oracle=%q", cfg.Scene.MaxBeats, cfg.Scene.Oracle.Kind)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log level = %q", cfg.Server.LogLevel)
	}
}

func TestLoadFromReader_UnknownFields(t *testing.T) {
	t.Parallel()
	if _, err := config.LoadFromReader(strings.NewReader(validYAML+"\nbogus: 1\n"), config.FormatYAML); err == nil {
		t.Error("yaml: expected error for unknown key")
	}
	if _, err := config.LoadFromReader(strings.NewReader(validTOML+"\n[bogus]\nx = 1\n"), config.FormatTOML); err == nil {
		t.Error("toml: expected error for unknown table")
	}
}

func TestLoadFromReader_BadDuration(t *testing.T) {
	t.Parallel()
	yaml := strings.Replace(validYAML, "reply_timeout: 45s", "reply_timeout: soon", 1)
	if _, err := config.LoadFromReader(strings.NewReader(yaml), config.FormatYAML); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "scene.toml")
	if err := os.WriteFile(tomlPath, []byte(validTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(tomlPath); err != nil {
		t.Errorf("Load(.toml): %v", err)
	}

	yamlPath := filepath.Join(dir, "scene.yml")
	if err := os.WriteFile(yamlPath, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(yamlPath); err != nil {
		t.Errorf("Load(.yml): %v", err)
	}

	if _, err := config.Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFormatFor(t *testing.T) {
	t.Parallel()
	tests := map[string]config.Format{
		"a.toml":       config.FormatTOML,
		"A.TOML":       config.FormatTOML,
		"a.yaml":       config.FormatYAML,
		"a.yml":        config.FormatYAML,
		"no-ext":       config.FormatYAML,
		"dir.toml/a.y": config.FormatYAML,
	}
	for path, want := range tests {
		if got := config.FormatFor(path); got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "loud" },
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "missing llm",
			mutate:  func(c *config.Config) { c.Providers.LLM = config.ProviderEntry{} },
			wantErr: []string{"providers.llm.name is required"},
		},
		{
			name:    "blank fallback",
			mutate:  func(c *config.Config) { c.Providers.Fallbacks = []config.ProviderEntry{{}} },
			wantErr: []string{"providers.fallbacks[0].name"},
		},
		{
			name:    "missing scene prompt",
			mutate:  func(c *config.Config) { c.Scene.Prompt = "" },
			wantErr: []string{"prompt is required"},
		},
		{
			name:    "unknown first responder",
			mutate:  func(c *config.Config) { c.Scene.FirstResponder = "mallory" },
			wantErr: []string{"first_responder"},
		},
		{
			name:    "duplicate participant",
			mutate:  func(c *config.Config) { c.Scene.Participants = []string{"alice", "bob", "alice"} },
			wantErr: []string{"duplicate of participants[0]"},
		},
		{
			name:    "participant without character",
			mutate:  func(c *config.Config) { c.Scene.Participants = append(c.Scene.Participants, "carol") },
			wantErr: []string{`"carol" has no character definition`},
		},
		{
			name: "duplicate character",
			mutate: func(c *config.Config) {
				c.Characters = append(c.Characters, config.CharacterConfig{ID: "alice"})
			},
			wantErr: []string{"duplicate of characters[0]"},
		},
		{
			name:    "character temperature",
			mutate:  func(c *config.Config) { c.Characters[0].Temperature = 3 },
			wantErr: []string{"characters[0]", "temperature"},
		},
		{
			name:    "phrase oracle without phrases",
			mutate:  func(c *config.Config) { c.Scene.Oracle.Phrases = nil },
			wantErr: []string{"scene.oracle.phrases"},
		},
		{
			name:    "unknown oracle",
			mutate:  func(c *config.Config) { c.Scene.Oracle.Kind = "vibes" },
			wantErr: []string{"scene.oracle.kind"},
		},
		{
			name:    "bad output format",
			mutate:  func(c *config.Config) { c.Output.Formats = []config.OutputFormat{"pdf"} },
			wantErr: []string{"output.formats[0]"},
		},
		{
			name:    "two stores",
			mutate:  func(c *config.Config) { c.Store.PostgresDSN = "postgres://localhost/scenes" },
			wantErr: []string{"either postgres_dsn or sqlite_path"},
		},
		{
			name: "everything at once",
			mutate: func(c *config.Config) {
				c.Server.LogLevel = "loud"
				c.Providers.LLM = config.ProviderEntry{}
				c.Scene.ID = ""
			},
			wantErr: []string{"server.log_level", "providers.llm", "id is required"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := config.LoadFromReader(strings.NewReader(validYAML), config.FormatYAML)
			if err != nil {
				t.Fatalf("base config: %v", err)
			}
			tc.mutate(cfg)
			err = config.Validate(cfg)
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			for _, want := range tc.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not contain %q", err, want)
				}
			}
		})
	}
}

func TestConfig_SceneConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML), config.FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	sc := cfg.SceneConfig()
	if sc.ID != "tavern" || sc.FirstResponder != "alice" || sc.MaxBeats != 12 {
		t.Errorf("scene config = %+v", sc)
	}
	if len(sc.OpeningEvents) != 1 || sc.WindowSize != scene.DefaultWindowSize {
		t.Errorf("scene config = %+v", sc)
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("converted scene config invalid: %v", err)
	}

	sc.Participants[0] = "mallory"
	if cfg.Scene.Participants[0] != "alice" {
		t.Error("SceneConfig shares the participants slice")
	}

	chars := cfg.AgentCharacters()
	if len(chars) != 2 || chars[0].DisplayName() != "Alice" || chars[0].Temperature != 0.8 {
		t.Errorf("characters = %+v", chars)
	}
	if chars[0].BehaviorRules[0] != "Never raise your voice first." {
		t.Errorf("behavior rules = %v", chars[0].BehaviorRules)
	}
}

func TestDuration_Text(t *testing.T) {
	t.Parallel()
	var d config.Duration
	if err := d.UnmarshalText([]byte(" 1m30s ")); err != nil {
		t.Fatal(err)
	}
	if time.Duration(d) != 90*time.Second {
		t.Errorf("d = %s", d)
	}
	b, _ := d.MarshalText()
	if string(b) != "1m30s" {
		t.Errorf("MarshalText = %q", b)
	}
	if err := d.UnmarshalText([]byte("90")); err == nil {
		t.Error("expected error for unit-less duration")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	want := &llmmock.Provider{}
	r.RegisterLLM("mock", func(e config.ProviderEntry) (llm.Provider, error) {
		if e.Model == "broken" {
			return nil, errors.New("bad model")
		}
		return want, nil
	})
	r.RegisterLLM("another", func(config.ProviderEntry) (llm.Provider, error) { return want, nil })

	got, err := r.CreateLLM(config.ProviderEntry{Name: "mock"})
	if err != nil || got != want {
		t.Errorf("CreateLLM = %v, %v", got, err)
	}
	if _, err := r.CreateLLM(config.ProviderEntry{Name: "mock", Model: "broken"}); err == nil || !strings.Contains(err.Error(), "bad model") {
		t.Errorf("factory error not surfaced: %v", err)
	}
	if _, err := r.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
	if names := r.LLMNames(); strings.Join(names, ",") != "another,mock" {
		t.Errorf("LLMNames = %v", names)
	}
}
