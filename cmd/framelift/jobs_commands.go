package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"framelift/internal/enhance"
	"framelift/internal/jobs"
	"framelift/internal/services"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage enhancement jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsSweepCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var ownerFlag string
	var statusFlags []string
	var limitFlag int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]jobs.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, err := jobs.ParseStatus(raw)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}

			return ctx.withRegistry(func(registry *jobs.Registry) error {
				var records []*jobs.Record
				var err error
				if ownerFlag != "" {
					records, err = registry.ListByOwner(cmd.Context(), ownerFlag, limitFlag)
				} else {
					records, err = registry.List(cmd.Context(), statuses...)
				}
				if err != nil {
					return err
				}

				if jsonOut {
					views := make([]jobView, 0, len(records))
					for _, record := range records {
						views = append(views, newJobView(record, nil))
					}
					return writeJSON(cmd, views)
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(jobListHeaders, buildJobRows(records), jobListAlignments))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&ownerFlag, "owner", "o", "", "Limit to one owner, newest first")
	cmd.Flags().StringArrayVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "Maximum records for --owner listings (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(service *enhance.Service, _ *jobs.Registry) error {
				status, err := service.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, newJobView(status.Record, status.EstimatedCompletion))
				}
				printJobDetail(cmd, status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func printJobDetail(cmd *cobra.Command, status enhance.JobStatus) {
	record := status.Record
	rows := [][]string{
		{"ID", record.ID},
		{"Owner", record.OwnerID},
		{"Kind", kindLabel(record.Kind)},
		{"Status", statusLabel(record.Status)},
		{"Progress", formatProgress(record)},
		{"Step", record.CurrentStep},
		{"Retries", fmt.Sprintf("%d/%d", record.RetryCount, record.MaxRetries)},
		{"Created", formatTimestamp(record.CreatedAt)},
	}
	if record.StartedAt != nil {
		rows = append(rows, []string{"Started", formatTimestamp(*record.StartedAt)})
	}
	if record.CompletedAt != nil {
		rows = append(rows, []string{"Completed", formatTimestamp(*record.CompletedAt)})
	}
	if status.EstimatedCompletion != nil {
		rows = append(rows, []string{"Remaining", formatDuration(*status.EstimatedCompletion)})
	}
	if record.OutputRef != "" {
		rows = append(rows, []string{"Output", record.OutputRef})
	}
	if record.ErrorMessage != "" {
		rows = append(rows, []string{"Error", record.ErrorMessage})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or processing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(service *enhance.Service, _ *jobs.Registry) error {
				ok, err := service.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s already finished; nothing to cancel\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(service *enhance.Service, _ *jobs.Registry) error {
				ok, err := service.Retry(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, services.ErrRetryExhausted) {
						return fmt.Errorf("job %s has no retries left", args[0])
					}
					return err
				}
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s is not failed; nothing to retry\n", args[0])
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued job %s\n", args[0])
				return nil
			})
		},
	}
}

func newJobsSweepCommand(ctx *commandContext) *cobra.Command {
	var hoursFlag int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete terminal jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			hours := hoursFlag
			if hours <= 0 {
				hours = cfg.Jobs.RetentionHours
			}
			return ctx.withRegistry(func(registry *jobs.Registry) error {
				removed, err := registry.Sweep(cmd.Context(), time.Duration(hours)*time.Hour)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs older than %dh\n", removed, hours)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&hoursFlag, "hours", 0, "Retention window override in hours")
	return cmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRegistry(func(registry *jobs.Registry) error {
				summary, err := registry.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, summary)
				}
				if summary.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Registry is empty")
					return nil
				}
				rows := [][]string{
					{statusLabel(jobs.StatusPending), fmt.Sprintf("%d", summary.Pending)},
					{statusLabel(jobs.StatusProcessing), fmt.Sprintf("%d", summary.Processing)},
					{statusLabel(jobs.StatusCompleted), fmt.Sprintf("%d", summary.Completed)},
					{statusLabel(jobs.StatusFailed), fmt.Sprintf("%d", summary.Failed)},
					{statusLabel(jobs.StatusCancelled), fmt.Sprintf("%d", summary.Cancelled)},
					{"Total", fmt.Sprintf("%d", summary.Total)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
