package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sceneforge/internal/config"
)

// newRootCmd creates the root command with every subcommand attached. reg
// supplies the LLM providers scenes can be cast with.
func newRootCmd(reg *config.Registry) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "sceneforge",
		Short:         "Run multi-agent LLM scenes",
		Long:          "sceneforge casts independently prompted LLM characters into a shared scene,\nmoderates them beat by beat, and archives the transcript.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("sceneforge {{.Version}}\n")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "scene.yaml", "path to the YAML or TOML scene file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("scene file %q not found; see configs/example.yaml to get started", configPath)
		}
		return cfg, err
	}

	cmd.AddCommand(
		newRunCmd(reg, &configPath, load),
		newValidateCmd(load),
		newParseCmd(),
		newHistoryCmd(load),
	)
	return cmd
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
