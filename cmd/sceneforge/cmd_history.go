package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sceneforge/internal/config"
	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/store"
	"github.com/MrWong99/sceneforge/internal/transcript"
)

func newHistoryCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history [scene-id]",
		Short: "List archived runs or print one archived transcript",
		Long: "History reads the configured store. Without --run it lists the most\n" +
			"recent runs of the scene (the scene file's scene by default). With --run\n" +
			"it prints that run's transcript and summary.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			st, err := openStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				r, err := st.Run(cmd.Context(), runID)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("run %q is not in the archive", runID)
				}
				if err != nil {
					return err
				}
				entries, err := st.Entries(cmd.Context(), runID)
				if err != nil {
					return err
				}
				res := scene.Result{
					Success:    r.Success,
					Transcript: transcript.Render(entries),
					Entries:    entries,
					Metadata:   r.Metadata,
					Err:        r.Err,
				}
				if res.Transcript != "" {
					fmt.Fprintln(out, res.Transcript)
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, renderSummary(res, nil))
				return nil
			}

			sceneID := cfg.Scene.ID
			if len(args) == 1 {
				sceneID = args[0]
			}
			runs, err := st.Runs(cmd.Context(), sceneID, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderRuns(sceneID, runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of runs to list (0 lists all)")
	cmd.Flags().StringVar(&runID, "run", "", "print the transcript of this run")
	return cmd
}
