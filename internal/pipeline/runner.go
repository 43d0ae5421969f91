package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"framelift/internal/config"
	"framelift/internal/encoding"
	"framelift/internal/logging"
	"framelift/internal/segmentation"
	"framelift/internal/services"
)

// Step labels surfaced to job status while a run advances.
const (
	StepExtracting   = "Extracting frames..."
	StepProcessing   = "Processing frames..."
	StepReassembling = "Reassembling video..."
)

// Source identifies the video a run enhances.
type Source struct {
	Path string
}

// Result summarizes a finished run. DegradedFrames holds zero-based playback
// indices, the sorted position of each frame regardless of file numbering.
type Result struct {
	FrameCountIn   int
	FrameCountOut  int
	DegradedFrames []int
	FPS            float64
	Width          int
	Height         int
	OutputRef      string
}

// ProgressFunc receives run progress. Percent is within [0,100] and step is a
// human-readable stage label.
type ProgressFunc func(percent float64, step string)

// RunnerOption overrides a runner collaborator, used by tests and the one-shot CLI.
type RunnerOption func(*Runner)

// WithProber overrides source inspection.
func WithProber(prober Prober) RunnerOption {
	return func(r *Runner) {
		if prober != nil {
			r.prober = prober
		}
	}
}

// WithExtractor overrides frame extraction.
func WithExtractor(extractor Extractor) RunnerOption {
	return func(r *Runner) {
		if extractor != nil {
			r.extractor = extractor
		}
	}
}

// WithEncoder overrides reassembly.
func WithEncoder(encoder encoding.Encoder) RunnerOption {
	return func(r *Runner) {
		if encoder != nil {
			r.encoder = encoder
		}
	}
}

// WithLogger attaches a logger to the runner.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logging.NewComponentLogger(logger, "pipeline")
		}
	}
}

// Runner executes enhancement runs.
type Runner struct {
	scratchRoot        string
	outputDir          string
	workers            int
	maxDegradedPercent int
	prober             Prober
	extractor          Extractor
	processor          segmentation.Processor
	encoder            encoding.Encoder
	logger             *slog.Logger
}

// NewRunner wires a runner from configuration. The processor is the only
// mandatory collaborator; everything else defaults to the ffmpeg toolchain.
func NewRunner(cfg *config.Config, processor segmentation.Processor, opts ...RunnerOption) *Runner {
	primary := encoding.NewFFmpeg(cfg.Encoder.PrimaryCodec,
		encoding.WithBinary(cfg.FFmpegBinary()),
		encoding.WithPixelFormat(cfg.Encoder.PixelFormat),
		encoding.WithCRF(cfg.Encoder.CRF))
	fallback := encoding.NewFFmpeg(cfg.Encoder.FallbackCodec,
		encoding.WithBinary(cfg.FFmpegBinary()),
		encoding.WithPixelFormat(cfg.Encoder.PixelFormat),
		encoding.WithCRF(cfg.Encoder.CRF))

	runner := &Runner{
		scratchRoot:        cfg.Paths.ScratchDir,
		outputDir:          cfg.Paths.OutputDir,
		workers:            cfg.Pipeline.FrameWorkers,
		maxDegradedPercent: cfg.Pipeline.MaxDegradedPercent,
		prober:             FFprobeProber{Binary: cfg.FFprobeBinary()},
		extractor:          FFmpegExtractor{Binary: cfg.FFmpegBinary()},
		processor:          processor,
		encoder:            encoding.WithFallback(primary, fallback),
		logger:             logging.NewNop(),
	}
	for _, opt := range opts {
		opt(runner)
	}
	if runner.workers <= 0 {
		runner.workers = 1
	}
	return runner
}

// Run enhances one source video. The scratch directory is private to this run
// and removed on every exit path.
func (r *Runner) Run(ctx context.Context, source Source, progress ProgressFunc) (Result, error) {
	if source.Path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "pipeline", "run", "source path required", nil)
	}
	if progress == nil {
		progress = func(float64, string) {}
	}

	if err := os.MkdirAll(r.scratchRoot, 0o755); err != nil {
		return Result{}, fmt.Errorf("create scratch root: %w", err)
	}
	scratchDir, err := os.MkdirTemp(r.scratchRoot, "run-")
	if err != nil {
		return Result{}, fmt.Errorf("create run scratch: %w", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(scratchDir); removeErr != nil {
			r.logger.Warn("scratch cleanup failed",
				logging.String("scratch_dir", scratchDir), logging.Error(removeErr))
		}
	}()

	progress(0, StepExtracting)

	media, err := r.prober.Probe(ctx, source.Path)
	if err != nil {
		return Result{}, err
	}

	frameCount, err := r.extractor.Extract(ctx, source.Path, scratchDir)
	if err != nil {
		return Result{}, err
	}
	frames, err := listFrames(scratchDir)
	if err != nil {
		return Result{}, err
	}
	progress(10, StepProcessing)

	r.logger.Info("frames extracted",
		logging.Int("frames", frameCount),
		logging.Float64("fps", media.FPS))

	degraded, err := r.processFrames(ctx, frames, progress)
	if err != nil {
		return Result{}, err
	}

	if r.maxDegradedPercent < 100 && frameCount > 0 {
		percent := len(degraded) * 100 / frameCount
		if percent > r.maxDegradedPercent {
			return Result{}, services.Wrap(services.ErrSegmentation, "pipeline", "process",
				fmt.Sprintf("%d of %d frames degraded (%d%% > %d%% limit)",
					len(degraded), frameCount, percent, r.maxDegradedPercent), nil)
		}
	}

	// Reassembly is a hard barrier: every frame above reached a terminal
	// outcome before this point. A cancelled run stops here with no output.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	progress(90, StepReassembling)

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}
	outputPath := filepath.Join(r.outputDir, filepath.Base(scratchDir)+".mp4")
	job := encoding.Job{
		FramesDir:  scratchDir,
		Pattern:    FramePattern,
		FPS:        media.FPS,
		Width:      media.Width,
		Height:     media.Height,
		OutputPath: outputPath,
	}
	if err := r.encoder.Encode(ctx, job); err != nil {
		_ = os.Remove(outputPath)
		return Result{}, err
	}

	progress(100, "")

	if len(degraded) > 0 {
		r.logger.Warn("run completed with degraded frames",
			logging.Int("degraded", len(degraded)),
			logging.Int("frames", frameCount))
	}

	return Result{
		FrameCountIn:   frameCount,
		FrameCountOut:  len(frames),
		DegradedFrames: degraded,
		FPS:            media.FPS,
		Width:          media.Width,
		Height:         media.Height,
		OutputRef:      outputPath,
	}, nil
}

// processFrames fans frames out to the processor under the configured worker
// bound. Submission checks cancellation between frames; in-flight calls are
// allowed to finish. Oracle failures degrade the frame in place, leaving the
// original payload for reassembly.
func (r *Runner) processFrames(ctx context.Context, frames []string, progress ProgressFunc) ([]int, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	type task struct {
		index int
		path  string
	}

	tasks := make(chan task)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		done     int
		degraded []int
	)

	total := len(frames)
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				ok := r.processFrame(ctx, item.path)
				// Outcome bookkeeping and progress share a lock so updates
				// are applied in completion order.
				mu.Lock()
				if !ok {
					degraded = append(degraded, item.index)
				}
				done++
				progress(10+75*float64(done)/float64(total), StepProcessing)
				mu.Unlock()
			}
		}()
	}

	cancelled := false
feed:
	for i, path := range frames {
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case tasks <- task{index: i, path: path}:
		}
	}
	close(tasks)
	wg.Wait()

	if cancelled {
		return nil, ctx.Err()
	}

	sort.Ints(degraded)
	return degraded, nil
}

// processFrame runs one oracle call, writing the processed payload over the
// frame file. It reports false when the frame had to keep its original payload.
func (r *Runner) processFrame(ctx context.Context, path string) bool {
	original, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("frame unreadable, keeping original",
			logging.String("frame", filepath.Base(path)), logging.Error(err))
		return false
	}

	processed, err := r.processor.Process(ctx, original)
	if err != nil {
		r.logger.Warn("frame degraded",
			logging.String("frame", filepath.Base(path)), logging.Error(err))
		return false
	}

	if err := os.WriteFile(path, processed, 0o644); err != nil {
		r.logger.Warn("frame write failed, keeping original",
			logging.String("frame", filepath.Base(path)), logging.Error(err))
		return false
	}
	return true
}
