package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a config file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the syntax from path's extension. Anything that is not
// .toml is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// ValidProviderNames lists the LLM provider names registered by the CLI.
// [Validate] warns about names outside this list.
var ValidProviderNames = []string{
	"openai", "openai-native", "anthropic", "ollama", "gemini",
	"deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads, defaults, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data), FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a config in format from r, applies defaults, and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := &Config{}
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg for coherence and returns every problem joined into
// one error. Soft issues are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.LLM.IsZero() {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	warnUnknownProvider("providers.llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.Fallbacks {
		if fb.IsZero() {
			errs = append(errs, fmt.Errorf("providers.fallbacks[%d].name is required", i))
		}
		warnUnknownProvider(fmt.Sprintf("providers.fallbacks[%d]", i), fb.Name)
	}
	warnUnknownProvider("providers.judge", cfg.Providers.Judge.Name)

	errs = append(errs, validateScene(cfg)...)
	errs = append(errs, validateCharacters(cfg)...)

	for i, f := range cfg.Output.Formats {
		if !f.IsValid() {
			errs = append(errs, fmt.Errorf("output.formats[%d] %q is invalid; valid values: markdown, json", i, f))
		}
	}

	if cfg.Store.PostgresDSN != "" && cfg.Store.SQLitePath != "" {
		errs = append(errs, errors.New("store: set either postgres_dsn or sqlite_path, not both"))
	}

	for i, b := range cfg.Events.Brokers {
		if strings.TrimSpace(b) == "" {
			errs = append(errs, fmt.Errorf("events.brokers[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}

func validateScene(cfg *Config) []error {
	var errs []error
	sc := cfg.Scene
	if err := cfg.SceneConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scene: %w", err))
	}
	if sc.ReplyTimeout < 0 {
		errs = append(errs, fmt.Errorf("scene.reply_timeout %s must not be negative", sc.ReplyTimeout))
	}
	if sc.FirstResponder != "" && !slices.Contains(sc.Participants, sc.FirstResponder) {
		errs = append(errs, fmt.Errorf("scene.first_responder %q is not a participant", sc.FirstResponder))
	}

	seen := make(map[string]int, len(sc.Participants))
	for i, p := range sc.Participants {
		if prev, ok := seen[p]; ok {
			errs = append(errs, fmt.Errorf("scene.participants[%d] %q is a duplicate of participants[%d]", i, p, prev))
		}
		seen[p] = i
	}

	o := sc.Oracle
	switch {
	case !o.Kind.IsValid():
		errs = append(errs, fmt.Errorf("scene.oracle.kind %q is invalid; valid values: never, phrase, llm", o.Kind))
	case o.Kind == OraclePhrase && len(o.Phrases) == 0:
		errs = append(errs, errors.New("scene.oracle.phrases is required for the phrase oracle"))
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		errs = append(errs, fmt.Errorf("scene.oracle.threshold %.2f is out of range [0, 1]", o.Threshold))
	}
	if o.Lookback < 0 || o.Every < 0 || o.Window < 0 {
		errs = append(errs, errors.New("scene.oracle: lookback, every, and window must not be negative"))
	}
	return errs
}

func validateCharacters(cfg *Config) []error {
	var errs []error
	ids := make(map[string]int, len(cfg.Characters))
	for i, c := range cfg.Characters {
		prefix := fmt.Sprintf("characters[%d]", i)
		if err := c.Character().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if c.ID == "" {
			continue
		}
		if prev, ok := ids[c.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of characters[%d]", prefix, c.ID, prev))
		}
		ids[c.ID] = i
	}
	for i, p := range cfg.Scene.Participants {
		if _, ok := ids[p]; !ok && p != "" {
			errs = append(errs, fmt.Errorf("scene.participants[%d] %q has no character definition", i, p))
		}
	}
	for id := range ids {
		if !slices.Contains(cfg.Scene.Participants, id) {
			slog.Warn("character is not a scene participant and will never speak", "character", id)
		}
	}
	return errs
}

// warnUnknownProvider logs a warning if name is set but not one of
// [ValidProviderNames].
func warnUnknownProvider(field, name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or a custom registration",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
