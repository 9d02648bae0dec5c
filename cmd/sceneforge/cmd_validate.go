package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sceneforge/internal/config"
)

func newValidateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the scene file and print the cast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCast(cfg))
			fmt.Fprintln(cmd.OutOrStdout(), "scene file OK")
			return nil
		},
	}
}
