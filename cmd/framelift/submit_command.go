package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"framelift/internal/enhance"
	"framelift/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var ownerFlag string
	var promptFlag string
	var durationFlag int
	var seedFlag int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "submit [source-video]",
		Short: "Queue an enhancement job for the daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := jobs.ParseKind(kindFlag)
			if err != nil {
				return err
			}

			params := jobs.Params{
				Prompt:   promptFlag,
				Duration: durationFlag,
				Seed:     seedFlag,
			}
			if len(args) == 1 {
				source, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve source path: %w", err)
				}
				params.Source = source
			}

			return ctx.withService(func(service *enhance.Service, _ *jobs.Registry) error {
				id, err := service.Submit(cmd.Context(), kind, ownerFlag, params)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]string{"id": id})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s\n", kind, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", string(jobs.KindBackground), "Job kind (background, quality, generation)")
	cmd.Flags().StringVarP(&ownerFlag, "owner", "o", "local", "Owner identifier for admission limits and history")
	cmd.Flags().StringVar(&promptFlag, "prompt", "", "Generation prompt (generation kind only)")
	cmd.Flags().IntVar(&durationFlag, "duration", 0, "Generation clip duration in seconds")
	cmd.Flags().Int64Var(&seedFlag, "seed", 0, "Generation seed")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
