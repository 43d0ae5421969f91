package config

const (
	defaultScratchDir         = "~/.local/share/framelift/scratch"
	defaultOutputDir          = "~/.local/share/framelift/output"
	defaultLogDir             = "~/.local/share/framelift/logs"
	defaultSegmentationModel  = "u2net_human_seg"
	defaultFrameTimeout       = 30
	defaultGenerationPoll     = 5
	defaultGenerationTimeout  = 600
	defaultPrimaryCodec       = "libx264"
	defaultFallbackCodec      = "mpeg4"
	defaultPixelFormat        = "yuv420p"
	defaultCRF                = 23
	defaultFrameWorkers       = 4
	defaultMaxDegradedPercent = 100
	defaultMaxRetries         = 3
	defaultRetryDelay         = 60
	defaultPerOwnerLimit      = 3
	defaultGlobalLimit        = 8
	defaultRetentionHours     = 24
	defaultWorkflowWorkers    = 2
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultSweepInterval      = 3600
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
		},
		Segmentation: Segmentation{
			Model:        defaultSegmentationModel,
			FrameTimeout: defaultFrameTimeout,
		},
		Generation: Generation{
			PollInterval: defaultGenerationPoll,
			Timeout:      defaultGenerationTimeout,
		},
		Encoder: Encoder{
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			PrimaryCodec:  defaultPrimaryCodec,
			FallbackCodec: defaultFallbackCodec,
			PixelFormat:   defaultPixelFormat,
			CRF:           defaultCRF,
		},
		Pipeline: Pipeline{
			FrameWorkers:       defaultFrameWorkers,
			MaxDegradedPercent: defaultMaxDegradedPercent,
		},
		Jobs: Jobs{
			MaxRetries:     defaultMaxRetries,
			RetryDelay:     defaultRetryDelay,
			AutoRetry:      true,
			PerOwnerLimit:  defaultPerOwnerLimit,
			GlobalLimit:    defaultGlobalLimit,
			RetentionHours: defaultRetentionHours,
		},
		Workflow: Workflow{
			Workers:            defaultWorkflowWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			SweepInterval:      defaultSweepInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
