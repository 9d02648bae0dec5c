package main

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/sceneforge/internal/config"
	"github.com/MrWong99/sceneforge/internal/oracle"
	"github.com/MrWong99/sceneforge/internal/resilience"
	"github.com/MrWong99/sceneforge/pkg/provider/llm"
	"github.com/MrWong99/sceneforge/pkg/provider/llm/anyllm"
	"github.com/MrWong99/sceneforge/pkg/provider/llm/openai"
)

// newRegistry returns a registry with every built-in LLM provider.
func newRegistry() *config.Registry {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	return reg
}

// registerBuiltinProviders wires the any-llm-go vendors and the native
// OpenAI SDK adapter into reg.
func registerBuiltinProviders(reg *config.Registry) {
	for _, vendor := range anyllm.Vendors() {
		reg.RegisterLLM(vendor, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(vendor, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	reg.RegisterLLM("openai-native", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		p, err := openai.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// buildLLM creates the primary provider and its fallbacks behind one
// circuit-broken [resilience.LLMFallback].
func buildLLM(cfg *config.Config, reg *config.Registry) (*resilience.LLMFallback, error) {
	primary, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	fb := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	for i, entry := range cfg.Providers.Fallbacks {
		p, err := reg.CreateLLM(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("fallback provider not registered; skipping", "index", i, "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		fb.AddFallback(fmt.Sprintf("%s#%d", entry.Name, i+1), p)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}
	return fb, nil
}

// buildOracle turns the scene's oracle settings into an [oracle.Oracle].
// The llm judge uses providers.judge when set and the scene provider
// otherwise.
func buildOracle(cfg *config.Config, reg *config.Registry, sceneLLM llm.Provider) (oracle.Oracle, error) {
	o := cfg.Scene.Oracle
	switch o.Kind {
	case config.OraclePhrase:
		var opts []oracle.PhraseOption
		if o.Threshold > 0 {
			opts = append(opts, oracle.WithThreshold(o.Threshold))
		}
		if o.Lookback > 0 {
			opts = append(opts, oracle.WithLookback(o.Lookback))
		}
		p, err := oracle.NewPhrase(o.Phrases, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil

	case config.OracleLLM:
		judge := sceneLLM
		if !cfg.Providers.Judge.IsZero() {
			p, err := reg.CreateLLM(cfg.Providers.Judge)
			if err != nil {
				return nil, fmt.Errorf("create judge provider %q: %w", cfg.Providers.Judge.Name, err)
			}
			judge = p
		}
		var opts []oracle.JudgeOption
		if o.Window > 0 {
			opts = append(opts, oracle.WithJudgeWindow(o.Window))
		}
		if o.Every > 0 {
			opts = append(opts, oracle.WithJudgeEvery(o.Every))
		}
		j, err := oracle.NewLLMJudge(judge, opts...)
		if err != nil {
			return nil, err
		}
		return j, nil

	default:
		return oracle.Never{}, nil
	}
}

// optString extracts a string value from a provider Options map.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
