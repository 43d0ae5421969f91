package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ScratchDir == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.FrameWorkers <= 0 {
		return errors.New("pipeline.frame_workers must be positive")
	}
	if c.Pipeline.MaxDegradedPercent < 0 || c.Pipeline.MaxDegradedPercent > 100 {
		return errors.New("pipeline.max_degraded_percent must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.MaxRetries < 0 {
		return errors.New("jobs.max_retries must not be negative")
	}
	if c.Jobs.PerOwnerLimit <= 0 {
		return errors.New("jobs.per_owner_limit must be positive")
	}
	if c.Jobs.GlobalLimit <= 0 {
		return errors.New("jobs.global_limit must be positive")
	}
	if c.Jobs.PerOwnerLimit > c.Jobs.GlobalLimit {
		return fmt.Errorf("jobs.per_owner_limit %d exceeds jobs.global_limit %d", c.Jobs.PerOwnerLimit, c.Jobs.GlobalLimit)
	}
	if c.Jobs.RetentionHours <= 0 {
		return errors.New("jobs.retention_hours must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.SweepInterval <= 0 {
		return errors.New("workflow.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
