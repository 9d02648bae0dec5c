package config

import (
	"fmt"
	"slices"
)

// ConfigDiff describes what changed between two configs. Watch mode uses it
// to report why a scene is re-run.
type ConfigDiff struct {
	LogLevelChanged  bool
	NewLogLevel      LogLevel
	SceneChanged     bool
	OracleChanged    bool
	ProvidersChanged bool
	CharacterChanges []CharacterDiff
}

// CharacterDiff describes what changed for one character.
type CharacterDiff struct {
	ID              string
	Added           bool
	Removed         bool
	PersonaChanged  bool
	SamplingChanged bool
}

// Empty reports whether nothing relevant changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SceneChanged && !d.OracleChanged &&
		!d.ProvidersChanged && len(d.CharacterChanges) == 0
}

// Summary renders d as short log-friendly lines.
func (d ConfigDiff) Summary() []string {
	var out []string
	if d.LogLevelChanged {
		out = append(out, fmt.Sprintf("log level -> %s", d.NewLogLevel))
	}
	if d.SceneChanged {
		out = append(out, "scene settings changed")
	}
	if d.OracleChanged {
		out = append(out, "oracle changed")
	}
	if d.ProvidersChanged {
		out = append(out, "providers changed")
	}
	for _, c := range d.CharacterChanges {
		switch {
		case c.Added:
			out = append(out, fmt.Sprintf("character %s added", c.ID))
		case c.Removed:
			out = append(out, fmt.Sprintf("character %s removed", c.ID))
		default:
			out = append(out, fmt.Sprintf("character %s changed", c.ID))
		}
	}
	return out
}

// Diff compares old and new. Character changes are reported in new's order,
// followed by removals in old's order.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.SceneChanged = !sceneEqual(old.Scene, new.Scene)
	d.OracleChanged = !oracleEqual(old.Scene.Oracle, new.Scene.Oracle)
	d.ProvidersChanged = !providerEqual(old.Providers.LLM, new.Providers.LLM) ||
		!providerEqual(old.Providers.Judge, new.Providers.Judge) ||
		!slices.EqualFunc(old.Providers.Fallbacks, new.Providers.Fallbacks, providerEqual)

	oldChars := make(map[string]CharacterConfig, len(old.Characters))
	for _, c := range old.Characters {
		oldChars[c.ID] = c
	}
	newIDs := make(map[string]bool, len(new.Characters))
	for _, c := range new.Characters {
		newIDs[c.ID] = true
		prev, ok := oldChars[c.ID]
		if !ok {
			d.CharacterChanges = append(d.CharacterChanges, CharacterDiff{ID: c.ID, Added: true})
			continue
		}
		cd := CharacterDiff{
			ID: c.ID,
			PersonaChanged: prev.Name != c.Name || prev.Personality != c.Personality ||
				prev.Goal != c.Goal || !slices.Equal(prev.BehaviorRules, c.BehaviorRules),
			SamplingChanged: prev.Temperature != c.Temperature || prev.MaxTokens != c.MaxTokens,
		}
		if cd.PersonaChanged || cd.SamplingChanged {
			d.CharacterChanges = append(d.CharacterChanges, cd)
		}
	}
	for _, c := range old.Characters {
		if !newIDs[c.ID] {
			d.CharacterChanges = append(d.CharacterChanges, CharacterDiff{ID: c.ID, Removed: true})
		}
	}
	return d
}

func sceneEqual(a, b SceneConfig) bool {
	return a.ID == b.ID && a.Prompt == b.Prompt &&
		slices.Equal(a.Participants, b.Participants) &&
		a.FirstResponder == b.FirstResponder && a.MaxBeats == b.MaxBeats &&
		slices.Equal(a.OpeningEvents, b.OpeningEvents) &&
		a.ReplyTimeout == b.ReplyTimeout && a.WindowSize == b.WindowSize &&
		a.MidpointRatio == b.MidpointRatio && a.WrapUpRatio == b.WrapUpRatio &&
		a.ResolveAddressees == b.ResolveAddressees
}

func oracleEqual(a, b OracleConfig) bool {
	return a.Kind == b.Kind && slices.Equal(a.Phrases, b.Phrases) &&
		a.Threshold == b.Threshold && a.Lookback == b.Lookback &&
		a.Every == b.Every && a.Window == b.Window
}

// providerEqual ignores Options; vendor options rarely change between edits
// and maps are not comparable.
func providerEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}
