package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"framelift/internal/generation"
	"framelift/internal/jobs"
	"framelift/internal/pipeline"
	"framelift/internal/services"
)

// Outcome is what a job runner hands back for a completed record.
type Outcome struct {
	OutputRef  string
	ResultJSON string
}

// JobRunner executes one kind of job.
type JobRunner interface {
	Run(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (Outcome, error)
}

// PipelineRunner adapts the frame pipeline to the background and quality kinds.
type PipelineRunner struct {
	Runner *pipeline.Runner
}

type pipelineResult struct {
	FramesIn       int     `json:"frames_in"`
	FramesOut      int     `json:"frames_out"`
	DegradedFrames []int   `json:"degraded_frames,omitempty"`
	FPS            float64 `json:"fps"`
	Width          int     `json:"width,omitempty"`
	Height         int     `json:"height,omitempty"`
}

// Run executes the frame pipeline for the record's source video.
func (p PipelineRunner) Run(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (Outcome, error) {
	params, err := jobs.DecodeParams(record.ParamsJSON)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrValidation, "workflow", "dispatch", "bad params", err)
	}
	if err := params.Validate(record.Kind); err != nil {
		return Outcome{}, services.Wrap(services.ErrValidation, "workflow", "dispatch", err.Error(), nil)
	}

	result, err := p.Runner.Run(ctx, pipeline.Source{Path: params.Source}, progress)
	if err != nil {
		return Outcome{}, err
	}

	payload, err := json.Marshal(pipelineResult{
		FramesIn:       result.FrameCountIn,
		FramesOut:      result.FrameCountOut,
		DegradedFrames: result.DegradedFrames,
		FPS:            result.FPS,
		Width:          result.Width,
		Height:         result.Height,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal result: %w", err)
	}
	return Outcome{OutputRef: result.OutputRef, ResultJSON: string(payload)}, nil
}

// GenerationRunner adapts the generation client to the generation kind.
type GenerationRunner struct {
	Client generation.Client
}

// Run submits the record's prompt and polls the remote run to completion.
func (g GenerationRunner) Run(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (Outcome, error) {
	params, err := jobs.DecodeParams(record.ParamsJSON)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrValidation, "workflow", "dispatch", "bad params", err)
	}
	if err := params.Validate(record.Kind); err != nil {
		return Outcome{}, services.Wrap(services.ErrValidation, "workflow", "dispatch", err.Error(), nil)
	}

	outputRef, err := g.Client.Generate(ctx, generation.Request{
		Prompt:   params.Prompt,
		Duration: params.Duration,
		Seed:     params.Seed,
	}, func(update generation.Update) {
		if progress != nil {
			progress(update.Percent, update.Stage)
		}
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{OutputRef: outputRef}, nil
}
