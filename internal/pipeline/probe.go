package pipeline

import (
	"context"

	"framelift/internal/media/ffprobe"
	"framelift/internal/services"
)

// Media captures the source geometry a run needs before extraction.
type Media struct {
	FPS        float64
	Width      int
	Height     int
	FrameCount int
}

// Prober inspects a source video.
type Prober interface {
	Probe(ctx context.Context, path string) (Media, error)
}

// FFprobeProber inspects sources with ffprobe.
type FFprobeProber struct {
	Binary string
}

// Probe returns the first video stream's geometry.
func (p FFprobeProber) Probe(ctx context.Context, path string) (Media, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return Media{}, services.Wrap(services.ErrFrameExtraction, "pipeline", "probe", "inspect source", err)
	}
	stream := result.FirstVideoStream()
	if stream == nil {
		return Media{}, services.Wrap(services.ErrFrameExtraction, "pipeline", "probe", "source has no video stream", nil)
	}
	media := Media{
		FPS:        stream.FrameRate(),
		Width:      stream.Width,
		Height:     stream.Height,
		FrameCount: stream.FrameCount(),
	}
	if media.FPS <= 0 {
		media.FPS = 30
	}
	return media, nil
}
