package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"framelift/internal/config"
	"framelift/internal/jobs"
	"framelift/internal/pipeline"
	"framelift/internal/segmentation"
)

// newEnhanceCommand runs the pipeline synchronously, without the daemon or
// the job registry. Useful for one-off local files.
func newEnhanceCommand(ctx *commandContext) *cobra.Command {
	var kindFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "enhance <source-video>",
		Short: "Enhance a video synchronously in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := jobs.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			if kind == jobs.KindGeneration {
				return fmt.Errorf("generation jobs are asynchronous; use `framelift submit --kind generation`")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			if _, err := os.Stat(source); err != nil {
				return fmt.Errorf("source video: %w", err)
			}

			processor, err := buildProcessor(cfg, kind)
			if err != nil {
				return err
			}
			runner := pipeline.NewRunner(cfg, processor)

			progress := newProgressPrinter(cmd, jsonOut)
			result, err := runner.Run(cmd.Context(), pipeline.Source{Path: source}, progress.report)
			progress.finish()
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, enhanceView{
					FramesIn:       result.FrameCountIn,
					FramesOut:      result.FrameCountOut,
					DegradedFrames: result.DegradedFrames,
					FPS:            result.FPS,
					Width:          result.Width,
					Height:         result.Height,
					Output:         result.OutputRef,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Enhanced %d frames (%d degraded) at %.3f fps\n",
				result.FrameCountIn, len(result.DegradedFrames), result.FPS)
			fmt.Fprintf(out, "Output: %s\n", result.OutputRef)
			return nil
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "kind", "k", string(jobs.KindBackground), "Enhancement kind (background, quality)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

type enhanceView struct {
	FramesIn       int     `json:"frames_in"`
	FramesOut      int     `json:"frames_out"`
	DegradedFrames []int   `json:"degraded_frames,omitempty"`
	FPS            float64 `json:"fps"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Output         string  `json:"output"`
}

func buildProcessor(cfg *config.Config, kind jobs.Kind) (segmentation.Processor, error) {
	endpoint := cfg.Segmentation.Endpoint
	if kind == jobs.KindQuality {
		endpoint = cfg.Segmentation.QualityEndpoint
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no oracle endpoint configured for kind %s", kind)
	}

	opts := []segmentation.Option{
		segmentation.WithTimeout(time.Duration(cfg.Segmentation.FrameTimeout) * time.Second),
	}
	if kind == jobs.KindBackground {
		opts = append(opts, segmentation.WithModel(cfg.Segmentation.Model))
	}
	return segmentation.NewHTTPProcessor(endpoint, opts...)
}

// progressPrinter renders pipeline progress, rewriting the line on a TTY and
// printing step transitions otherwise. JSON mode stays silent until the end.
type progressPrinter struct {
	cmd      *cobra.Command
	silent   bool
	tty      bool
	lastStep string
	wrote    bool
}

func newProgressPrinter(cmd *cobra.Command, silent bool) *progressPrinter {
	tty := false
	if file, ok := cmd.OutOrStdout().(*os.File); ok {
		tty = isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
	}
	return &progressPrinter{cmd: cmd, silent: silent, tty: tty}
}

func (p *progressPrinter) report(percent float64, step string) {
	if p.silent {
		return
	}
	out := p.cmd.OutOrStdout()
	if p.tty {
		fmt.Fprintf(out, "\r%-24s %3.0f%%", step, percent)
		p.wrote = true
		return
	}
	if step != "" && step != p.lastStep {
		fmt.Fprintf(out, "%s\n", step)
		p.lastStep = step
	}
}

func (p *progressPrinter) finish() {
	if p.wrote {
		fmt.Fprintln(p.cmd.OutOrStdout())
	}
}
