package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/sceneforge/internal/config"
	"github.com/MrWong99/sceneforge/internal/events"
	"github.com/MrWong99/sceneforge/internal/health"
	"github.com/MrWong99/sceneforge/internal/output"
	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/store"
)

// sinks are the destinations a finished run is written to. Each is optional.
type sinks struct {
	writer *output.Writer
	store  store.Store
	events *events.Publisher
}

func openSinks(ctx context.Context, cfg *config.Config) (*sinks, error) {
	s := &sinks{}
	if cfg.Output.Dir != "" {
		formats := make([]output.Format, len(cfg.Output.Formats))
		for i, f := range cfg.Output.Formats {
			formats[i] = output.Format(f)
		}
		w, err := output.New(cfg.Output.Dir, formats...)
		if err != nil {
			return nil, err
		}
		s.writer = w
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil && !errors.Is(err, errNoStore) {
		return nil, err
	}
	s.store = st

	if cfg.Events.Enabled() {
		p, err := events.New(events.Config{Brokers: cfg.Events.Brokers, Topic: cfg.Events.Topic})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.events = p
	}
	return s, nil
}

// openStore opens the configured archive or returns errNoStore.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch {
	case cfg.PostgresDSN != "":
		s, err := store.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		slog.Info("store opened", "backend", "postgres")
		return s, nil
	case cfg.SQLitePath != "":
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("store opened", "backend", "sqlite", "path", cfg.SQLitePath)
		return s, nil
	default:
		return nil, errNoStore
	}
}

// persist writes res to every sink. It keeps going after a failure and
// returns the written file paths with all errors joined.
func (s *sinks) persist(ctx context.Context, res scene.Result) ([]string, error) {
	var (
		files []string
		errs  []error
	)
	if s.writer != nil {
		paths, err := s.writer.Write(ctx, res)
		files = paths
		if err != nil {
			errs = append(errs, err)
		}
	}
	if s.store != nil {
		if err := s.store.SaveResult(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishResult(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return files, errors.Join(errs...)
}

func (s *sinks) checkers() []health.Checker {
	var out []health.Checker
	if s.store != nil {
		out = append(out, health.PingChecker("store", s.store))
	}
	return out
}

func (s *sinks) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
