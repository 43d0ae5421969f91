package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEndpoints()
	c.normalizeEncoder()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEndpoints() {
	c.Segmentation.Endpoint = strings.TrimSpace(c.Segmentation.Endpoint)
	c.Segmentation.QualityEndpoint = strings.TrimSpace(c.Segmentation.QualityEndpoint)
	c.Segmentation.Model = strings.TrimSpace(c.Segmentation.Model)
	c.Generation.Endpoint = strings.TrimSpace(c.Generation.Endpoint)
	if c.Segmentation.FrameTimeout <= 0 {
		c.Segmentation.FrameTimeout = defaultFrameTimeout
	}
	if c.Generation.PollInterval <= 0 {
		c.Generation.PollInterval = defaultGenerationPoll
	}
	if c.Generation.Timeout <= 0 {
		c.Generation.Timeout = defaultGenerationTimeout
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	c.Encoder.PrimaryCodec = strings.TrimSpace(c.Encoder.PrimaryCodec)
	c.Encoder.FallbackCodec = strings.TrimSpace(c.Encoder.FallbackCodec)
	c.Encoder.PixelFormat = strings.TrimSpace(c.Encoder.PixelFormat)
	if c.Encoder.PrimaryCodec == "" {
		c.Encoder.PrimaryCodec = defaultPrimaryCodec
	}
	if c.Encoder.FallbackCodec == "" {
		c.Encoder.FallbackCodec = defaultFallbackCodec
	}
	if c.Encoder.PixelFormat == "" {
		c.Encoder.PixelFormat = defaultPixelFormat
	}
	if c.Encoder.CRF <= 0 {
		c.Encoder.CRF = defaultCRF
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
