package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sceneforge/internal/address"
	"github.com/MrWong99/sceneforge/internal/agent"
	"github.com/MrWong99/sceneforge/internal/config"
	"github.com/MrWong99/sceneforge/internal/health"
	"github.com/MrWong99/sceneforge/internal/moderator"
	"github.com/MrWong99/sceneforge/internal/observe"
	"github.com/MrWong99/sceneforge/internal/resilience"
)

type runFlags struct {
	maxBeats int
	trace    bool
	output   string
	watch    bool
	quiet    bool
}

// apply overrides file values with command-line flags and re-validates.
func (f runFlags) apply(cfg *config.Config) error {
	if f.maxBeats < 0 {
		return fmt.Errorf("--max-beats %d must not be negative", f.maxBeats)
	}
	if f.maxBeats > 0 {
		cfg.Scene.MaxBeats = f.maxBeats
	}
	if f.output != "" {
		cfg.Output.Dir = f.output
		config.ApplyDefaults(cfg)
	}
	return config.Validate(cfg)
}

func newRunCmd(reg *config.Registry, configPath *string, load func() (*config.Config, error)) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scene and archive its transcript",
		Long: "Run loads the scene file, casts every character, and moderates the scene\n" +
			"until the completion oracle is satisfied or the beat budget runs out.\n" +
			"With --watch the scene is run again every time the scene file changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := f.apply(cfg); err != nil {
				return err
			}
			return runScenes(cmd.Context(), cmd.OutOrStdout(), reg, *configPath, cfg, f)
		},
	}
	cmd.Flags().IntVar(&f.maxBeats, "max-beats", 0, "override scene.max_beats")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "record and print per-beat moderator decisions")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "override output.dir")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "re-run the scene whenever the scene file changes")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "print only the run summary")
	return cmd
}

// runScenes sets up the process-wide services once and runs the scene, then
// keeps re-running it on scene file changes when watching.
func runScenes(ctx context.Context, out io.Writer, reg *config.Registry, path string, cfg *config.Config, f runFlags) error {
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	s, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Warn("closing sinks", "err", err)
		}
	}()

	var llmRef atomic.Pointer[resilience.LLMFallback]
	progress := health.NewProgress()
	// Telemetry is only exported through the metrics listener, so without
	// one the global providers stay no-op.
	if cfg.Server.MetricsAddr != "" {
		shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()

		checkers := append(s.checkers(), health.ProvidersChecker("llm", func() []resilience.EntryState {
			if p := llmRef.Load(); p != nil {
				return p.States()
			}
			return nil
		}))
		stop, err := startServer(cfg.Server.MetricsAddr, health.New(checkers...).WithProgress(progress))
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = stop(sctx)
		}()
	}

	run := func(cfg *config.Config) error {
		return runOnce(ctx, out, reg, cfg, f, s, progress, &llmRef)
	}
	if !f.watch {
		return run(cfg)
	}

	changes := make(chan *config.Config, 1)
	w, err := config.NewWatcher(path, func(old, next *config.Config) {
		for _, line := range config.Diff(old, next).Summary() {
			slog.Info("scene file changed", "change", line)
		}
		select {
		case <-changes:
		default:
		}
		changes <- next
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	for {
		if err := run(cfg); err != nil && ctx.Err() == nil {
			slog.Error("scene run failed", "err", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		slog.Info("waiting for scene file changes; press Ctrl+C to stop", "path", path)
		next, ok := nextConfig(ctx, changes, f)
		if !ok {
			return nil
		}
		cfg = next
		slog.SetDefault(newLogger(cfg.Server.LogLevel))
	}
}

// nextConfig waits for a changed config that still validates after flag
// overrides. It returns false when ctx is done.
func nextConfig(ctx context.Context, changes <-chan *config.Config, f runFlags) (*config.Config, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case next := <-changes:
			if err := f.apply(next); err != nil {
				slog.Error("changed scene file rejected", "err", err)
				continue
			}
			return next, true
		}
	}
}

// runOnce casts the scene from cfg, runs it, and persists the result.
func runOnce(
	ctx context.Context,
	out io.Writer,
	reg *config.Registry,
	cfg *config.Config,
	f runFlags,
	s *sinks,
	progress *health.Progress,
	llmRef *atomic.Pointer[resilience.LLMFallback],
) error {
	provider, err := buildLLM(cfg, reg)
	if err != nil {
		return err
	}
	llmRef.Store(provider)

	gateway, err := agent.NewLLMGateway(provider, cfg.AgentCharacters(),
		agent.WithProviderName(cfg.Providers.LLM.Name),
		agent.WithGatewayMetrics(observe.DefaultMetrics()),
	)
	if err != nil {
		return err
	}
	orc, err := buildOracle(cfg, reg, provider)
	if err != nil {
		return err
	}

	opts := []moderator.Option{
		moderator.WithOracle(orc),
		moderator.WithReplyTimeout(time.Duration(cfg.Scene.ReplyTimeout)),
		moderator.WithObserver(progress),
	}
	if s.events != nil {
		opts = append(opts, moderator.WithObserver(s.events))
	}
	if cfg.Scene.ResolveAddressees {
		opts = append(opts, moderator.WithAddresseeResolver(address.New(cfg.AgentCharacters())))
	}
	if f.trace {
		opts = append(opts, moderator.WithTrace())
	}

	sc := cfg.SceneConfig()
	progress.Begin(sc)
	slog.Info("scene starting", "scene", sc.ID, "participants", len(sc.Participants), "max_beats", sc.MaxBeats)
	res := moderator.New(gateway, opts...).Run(ctx, sc)
	progress.Finish(res)

	files, err := s.persist(context.WithoutCancel(ctx), res)
	if err != nil {
		slog.Warn("result not fully persisted", "run", res.Metadata.RunID, "err", err)
	}

	if !f.quiet && res.Transcript != "" {
		fmt.Fprintln(out, res.Transcript)
		fmt.Fprintln(out)
	}
	if f.trace && len(res.Metadata.Trace) > 0 {
		for _, line := range res.Metadata.Trace {
			fmt.Fprintln(out, "trace:", line)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, renderSummary(res, files))

	if res.Err != nil {
		return fmt.Errorf("scene %s: %w", sc.ID, res.Err)
	}
	return nil
}

// errNoStore is returned by commands that need an archive when none is
// configured.
var errNoStore = errors.New("no store configured; set store.sqlite_path or store.postgres_dsn")
