package pipeline

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"framelift/internal/services"
)

// FramePattern is the numbered frame naming scheme shared by extraction and
// reassembly. The index embedded in the name is the ordering truth for a run.
const FramePattern = "frame_%06d.png"

var commandContext = exec.CommandContext

// Extractor decomposes a source video into numbered frame files.
type Extractor interface {
	Extract(ctx context.Context, sourcePath, framesDir string) (int, error)
}

// FFmpegExtractor extracts frames with ffmpeg.
type FFmpegExtractor struct {
	Binary string
}

// Extract writes one PNG per frame into framesDir and returns the frame count.
// An unreadable or corrupt source is fatal for the run.
func (e FFmpegExtractor) Extract(ctx context.Context, sourcePath, framesDir string) (int, error) {
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	cmd := commandContext(ctx, binary,
		"-y",
		"-i", sourcePath,
		filepath.Join(framesDir, FramePattern),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, services.Wrap(services.ErrFrameExtraction, "pipeline", "extract",
			fmt.Sprintf("ffmpeg: %s", strings.TrimSpace(string(output))), err)
	}

	frames, err := listFrames(framesDir)
	if err != nil {
		return 0, err
	}
	if len(frames) == 0 {
		return 0, services.Wrap(services.ErrFrameExtraction, "pipeline", "extract", "no frames produced", nil)
	}
	return len(frames), nil
}

// listFrames returns frame paths in index order.
func listFrames(framesDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(framesDir, "frame_*.png"))
	if err != nil {
		return nil, services.Wrap(services.ErrFrameExtraction, "pipeline", "extract", "list frames", err)
	}
	sort.Strings(matches)
	return matches, nil
}
