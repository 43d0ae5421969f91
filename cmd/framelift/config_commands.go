package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"framelift/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set segmentation.endpoint before starting frameliftd.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, cfg)
			}

			rows := [][]string{
				{"Scratch dir", cfg.Paths.ScratchDir},
				{"Output dir", cfg.Paths.OutputDir},
				{"Log dir", cfg.Paths.LogDir},
				{"Segmentation endpoint", cfg.Segmentation.Endpoint},
				{"Quality endpoint", cfg.Segmentation.QualityEndpoint},
				{"Generation endpoint", cfg.Generation.Endpoint},
				{"Primary codec", cfg.Encoder.PrimaryCodec},
				{"Fallback codec", cfg.Encoder.FallbackCodec},
				{"Frame workers", fmt.Sprintf("%d", cfg.Pipeline.FrameWorkers)},
				{"Workflow workers", fmt.Sprintf("%d", cfg.Workflow.Workers)},
				{"Max retries", fmt.Sprintf("%d", cfg.Jobs.MaxRetries)},
				{"Per-owner limit", fmt.Sprintf("%d", cfg.Jobs.PerOwnerLimit)},
				{"Global limit", fmt.Sprintf("%d", cfg.Jobs.GlobalLimit)},
				{"Retention hours", fmt.Sprintf("%d", cfg.Jobs.RetentionHours)},
				{"Log level", cfg.Logging.Level},
				{"Log format", cfg.Logging.Format},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
