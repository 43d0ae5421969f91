package encoding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"framelift/internal/services"
)

var commandContext = exec.CommandContext

// Job describes one reassembly request. Width and Height pin the output
// resolution; zero values leave the frame dimensions untouched.
type Job struct {
	FramesDir  string
	Pattern    string
	FPS        float64
	Width      int
	Height     int
	OutputPath string
}

// Encoder turns a directory of ordered frames into a video file.
type Encoder interface {
	Encode(ctx context.Context, job Job) error
}

// Option configures the ffmpeg encoder.
type Option func(*FFmpeg)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(e *FFmpeg) {
		if binary != "" {
			e.binary = binary
		}
	}
}

// WithPixelFormat overrides the output pixel format.
func WithPixelFormat(format string) Option {
	return func(e *FFmpeg) {
		if format != "" {
			e.pixelFormat = format
		}
	}
}

// WithCRF overrides the constant rate factor.
func WithCRF(crf int) Option {
	return func(e *FFmpeg) {
		if crf > 0 {
			e.crf = crf
		}
	}
}

// FFmpeg encodes frame sequences with a fixed codec.
type FFmpeg struct {
	binary      string
	codec       string
	pixelFormat string
	crf         int
}

// NewFFmpeg constructs an encoder for the given codec using defaults.
func NewFFmpeg(codec string, opts ...Option) *FFmpeg {
	encoder := &FFmpeg{
		binary:      "ffmpeg",
		codec:       codec,
		pixelFormat: "yuv420p",
		crf:         23,
	}
	for _, opt := range opts {
		opt(encoder)
	}
	return encoder
}

// Codec returns the codec this encoder runs.
func (e *FFmpeg) Codec() string {
	return e.codec
}

// Encode runs ffmpeg over the frame pattern and writes the output file. A
// failed run removes any partial output before returning.
func (e *FFmpeg) Encode(ctx context.Context, job Job) error {
	if job.FramesDir == "" {
		return errors.New("frames directory required")
	}
	if job.OutputPath == "" {
		return errors.New("output path required")
	}
	pattern := job.Pattern
	if pattern == "" {
		pattern = "frame_%06d.png"
	}
	fps := job.FPS
	if fps <= 0 {
		fps = 30
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := []string{
		"-y",
		"-framerate", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", filepath.Join(job.FramesDir, pattern),
		"-c:v", e.codec,
		"-pix_fmt", e.pixelFormat,
		"-crf", strconv.Itoa(e.crf),
	}
	if job.Width > 0 && job.Height > 0 {
		args = append(args, "-s", fmt.Sprintf("%dx%d", job.Width, job.Height))
	}
	args = append(args, job.OutputPath)

	cmd := commandContext(ctx, e.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(job.OutputPath)
		return fmt.Errorf("ffmpeg %s encode: %w: %s", e.codec, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Fallback composes a primary and fallback encoder.
type Fallback struct {
	primary  Encoder
	fallback Encoder
}

// WithFallback returns an encoder that retries once on the fallback when the
// primary fails. Both failing is fatal for the run.
func WithFallback(primary, fallback Encoder) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

// Encode attempts the primary encoder, then the fallback with identical inputs.
func (f *Fallback) Encode(ctx context.Context, job Job) error {
	primaryErr := f.primary.Encode(ctx, job)
	if primaryErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.fallback == nil {
		return services.Wrap(services.ErrEncoding, "encoding", "reassemble", "primary encode failed", primaryErr)
	}
	if fallbackErr := f.fallback.Encode(ctx, job); fallbackErr != nil {
		return services.Wrap(services.ErrEncoding, "encoding", "reassemble",
			fmt.Sprintf("primary failed (%v); fallback failed", primaryErr), fallbackErr)
	}
	return nil
}
