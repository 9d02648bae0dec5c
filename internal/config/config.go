// Package config provides the configuration schema, loader, and provider
// registry for sceneforge.
//
// A config file describes one scene: who is in it, which model voices the
// characters, how completion is detected, and where results go. Files are
// YAML (.yaml, .yml) or TOML (.toml).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/sceneforge/internal/agent"
	"github.com/MrWong99/sceneforge/internal/scene"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// OracleKind selects the completion oracle.
type OracleKind string

const (
	OracleNever  OracleKind = "never"
	OraclePhrase OracleKind = "phrase"
	OracleLLM    OracleKind = "llm"
)

// IsValid reports whether k is a recognised oracle kind.
func (k OracleKind) IsValid() bool {
	switch k {
	case OracleNever, OraclePhrase, OracleLLM:
		return true
	}
	return false
}

// OutputFormat selects a result rendering.
type OutputFormat string

const (
	FormatMarkdown OutputFormat = "markdown"
	FormatJSON     OutputFormat = "json"
)

// IsValid reports whether f is a recognised output format.
func (f OutputFormat) IsValid() bool {
	return f == FormatMarkdown || f == FormatJSON
}

// Duration is a time.Duration written as a Go duration string ("45s",
// "2m") in config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Config is the root configuration. Load it with [Load] or
// [LoadFromReader].
type Config struct {
	Server     ServerConfig      `yaml:"server" toml:"server"`
	Providers  ProvidersConfig   `yaml:"providers" toml:"providers"`
	Scene      SceneConfig       `yaml:"scene" toml:"scene"`
	Characters []CharacterConfig `yaml:"characters" toml:"characters"`
	Output     OutputConfig      `yaml:"output" toml:"output"`
	Store      StoreConfig       `yaml:"store" toml:"store"`
	Events     EventsConfig      `yaml:"events" toml:"events"`
	Telemetry  TelemetryConfig   `yaml:"telemetry" toml:"telemetry"`
}

// ServerConfig holds logging and the metrics/health listener.
type ServerConfig struct {
	LogLevel LogLevel `yaml:"log_level" toml:"log_level"`

	// MetricsAddr is the listen address for /metrics, /healthz, /readyz,
	// and /status. Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
}

// ProvidersConfig selects the language models. Each entry names a factory
// registered in the [Registry].
type ProvidersConfig struct {
	// LLM voices every character.
	LLM ProviderEntry `yaml:"llm" toml:"llm"`

	// Fallbacks are tried in order when LLM's circuit breaker is open or a
	// call fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks" toml:"fallbacks"`

	// Judge backs the "llm" oracle. Defaults to LLM when empty.
	Judge ProviderEntry `yaml:"judge" toml:"judge"`
}

// ProviderEntry is the configuration shared by all LLM providers.
type ProviderEntry struct {
	// Name selects the registered factory ("openai", "anthropic", ...).
	Name string `yaml:"name" toml:"name"`

	// APIKey authenticates against the vendor. Empty means the vendor's
	// usual environment variable.
	APIKey string `yaml:"api_key" toml:"api_key"`

	// BaseURL overrides the vendor endpoint.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// Model selects the model within the vendor.
	Model string `yaml:"model" toml:"model"`

	// Options holds vendor-specific values not covered above.
	Options map[string]any `yaml:"options" toml:"options"`
}

// IsZero reports whether no provider was configured.
func (e ProviderEntry) IsZero() bool {
	return e.Name == ""
}

// SceneConfig mirrors scene.Config plus moderator tunables.
type SceneConfig struct {
	ID             string   `yaml:"id" toml:"id"`
	Prompt         string   `yaml:"prompt" toml:"prompt"`
	Participants   []string `yaml:"participants" toml:"participants"`
	FirstResponder string   `yaml:"first_responder" toml:"first_responder"`
	MaxBeats       int      `yaml:"max_beats" toml:"max_beats"`
	OpeningEvents  []string `yaml:"opening_events" toml:"opening_events"`
	ReplyTimeout   Duration `yaml:"reply_timeout" toml:"reply_timeout"`
	WindowSize     int      `yaml:"window_size" toml:"window_size"`
	MidpointRatio  float64  `yaml:"midpoint_ratio" toml:"midpoint_ratio"`
	WrapUpRatio    float64  `yaml:"wrap_up_ratio" toml:"wrap_up_ratio"`

	// ResolveAddressees rewrites each dialog target to the ID of the
	// participant it names, matching names fuzzily.
	ResolveAddressees bool `yaml:"resolve_addressees" toml:"resolve_addressees"`

	Oracle OracleConfig `yaml:"oracle" toml:"oracle"`
}

// OracleConfig selects and tunes the completion oracle.
type OracleConfig struct {
	Kind OracleKind `yaml:"kind" toml:"kind"`

	// Phrases, Threshold, and Lookback tune the "phrase" oracle.
	Phrases   []string `yaml:"phrases" toml:"phrases"`
	Threshold float64  `yaml:"threshold" toml:"threshold"`
	Lookback  int      `yaml:"lookback" toml:"lookback"`

	// Every and Window tune the "llm" oracle.
	Every  int `yaml:"every" toml:"every"`
	Window int `yaml:"window" toml:"window"`
}

// CharacterConfig describes one participant's persona.
type CharacterConfig struct {
	ID            string   `yaml:"id" toml:"id"`
	Name          string   `yaml:"name" toml:"name"`
	Personality   string   `yaml:"personality" toml:"personality"`
	Goal          string   `yaml:"goal" toml:"goal"`
	BehaviorRules []string `yaml:"behavior_rules" toml:"behavior_rules"`
	Temperature   float64  `yaml:"temperature" toml:"temperature"`
	MaxTokens     int      `yaml:"max_tokens" toml:"max_tokens"`
}

// Character converts c to an agent.Character.
func (c CharacterConfig) Character() agent.Character {
	return agent.Character{
		ID:            c.ID,
		Name:          c.Name,
		Personality:   c.Personality,
		Goal:          c.Goal,
		BehaviorRules: append([]string(nil), c.BehaviorRules...),
		Temperature:   c.Temperature,
		MaxTokens:     c.MaxTokens,
	}
}

// OutputConfig selects where and how results are written.
type OutputConfig struct {
	// Dir receives one file per format per run. Empty disables file output.
	Dir     string         `yaml:"dir" toml:"dir"`
	Formats []OutputFormat `yaml:"formats" toml:"formats"`
}

// StoreConfig selects the result archive. At most one backend may be set.
type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" toml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path" toml:"sqlite_path"`
}

// EventsConfig enables streaming transcript entries to Kafka.
type EventsConfig struct {
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topic   string   `yaml:"topic" toml:"topic"`
}

// Enabled reports whether event publishing is configured.
func (e EventsConfig) Enabled() bool {
	return len(e.Brokers) > 0
}

// TelemetryConfig names the service in exported telemetry.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultLogLevel    = LogInfo
	DefaultEventsTopic = "sceneforge.transcript"
	DefaultServiceName = "sceneforge"
)

// ApplyDefaults fills zero values with their defaults. Scene tunables are
// defaulted here too so that the effective values are visible to callers.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if len(cfg.Scene.Participants) == 0 {
		for _, c := range cfg.Characters {
			cfg.Scene.Participants = append(cfg.Scene.Participants, c.ID)
		}
	}
	if cfg.Scene.MaxBeats == 0 {
		cfg.Scene.MaxBeats = scene.DefaultMaxBeats
	}
	if cfg.Scene.ReplyTimeout == 0 {
		cfg.Scene.ReplyTimeout = Duration(scene.DefaultReplyTimeout)
	}
	if cfg.Scene.WindowSize == 0 {
		cfg.Scene.WindowSize = scene.DefaultWindowSize
	}
	if cfg.Scene.MidpointRatio == 0 {
		cfg.Scene.MidpointRatio = scene.DefaultMidpointRatio
	}
	if cfg.Scene.WrapUpRatio == 0 {
		cfg.Scene.WrapUpRatio = scene.DefaultWrapUpRatio
	}
	if cfg.Scene.Oracle.Kind == "" {
		cfg.Scene.Oracle.Kind = OracleNever
	}
	if cfg.Output.Dir != "" && len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []OutputFormat{FormatMarkdown, FormatJSON}
	}
	if cfg.Events.Enabled() && cfg.Events.Topic == "" {
		cfg.Events.Topic = DefaultEventsTopic
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// SceneConfig returns the scene.Config the moderator runs.
func (c *Config) SceneConfig() scene.Config {
	return scene.Config{
		ID:             c.Scene.ID,
		Prompt:         c.Scene.Prompt,
		Participants:   append([]string(nil), c.Scene.Participants...),
		FirstResponder: c.Scene.FirstResponder,
		MaxBeats:       c.Scene.MaxBeats,
		OpeningEvents:  append([]string(nil), c.Scene.OpeningEvents...),
		WindowSize:     c.Scene.WindowSize,
		MidpointRatio:  c.Scene.MidpointRatio,
		WrapUpRatio:    c.Scene.WrapUpRatio,
	}
}

// AgentCharacters converts every configured character.
func (c *Config) AgentCharacters() []agent.Character {
	out := make([]agent.Character, len(c.Characters))
	for i, ch := range c.Characters {
		out[i] = ch.Character()
	}
	return out
}
