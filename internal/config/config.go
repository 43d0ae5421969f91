package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Segmentation contains configuration for the external background
// segmentation endpoint consumed per frame.
type Segmentation struct {
	Endpoint        string `toml:"endpoint"`
	QualityEndpoint string `toml:"quality_endpoint"`
	Model           string `toml:"model"`
	FrameTimeout    int    `toml:"frame_timeout"`
}

// Generation contains configuration for the external text-to-video endpoint.
type Generation struct {
	Endpoint     string `toml:"endpoint"`
	PollInterval int    `toml:"poll_interval"`
	Timeout      int    `toml:"timeout"`
}

// Encoder contains configuration for video reassembly.
type Encoder struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	PrimaryCodec  string `toml:"primary_codec"`
	FallbackCodec string `toml:"fallback_codec"`
	PixelFormat   string `toml:"pixel_format"`
	CRF           int    `toml:"crf"`
}

// Pipeline contains configuration for per-run frame processing.
type Pipeline struct {
	FrameWorkers int `toml:"frame_workers"`
	// MaxDegradedPercent caps the share of degraded frames tolerated before a
	// run fails. 100 preserves the reference behavior of no cap.
	MaxDegradedPercent int `toml:"max_degraded_percent"`
}

// Jobs contains configuration for job admission, retries, and retention.
type Jobs struct {
	MaxRetries     int  `toml:"max_retries"`
	RetryDelay     int  `toml:"retry_delay"`
	AutoRetry      bool `toml:"auto_retry"`
	PerOwnerLimit  int  `toml:"per_owner_limit"`
	GlobalLimit    int  `toml:"global_limit"`
	RetentionHours int  `toml:"retention_hours"`
}

// Workflow contains configuration for daemon timing and worker counts.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	SweepInterval      int `toml:"sweep_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Framelift.
//
// Configuration sections by subsystem:
//   - Paths: scratch, output, and log directories
//   - Segmentation: per-frame background removal endpoint
//   - Generation: text-to-video endpoint and polling
//   - Encoder: ffmpeg/ffprobe binaries and codec paths
//   - Pipeline: frame fan-out and degraded-frame policy
//   - Jobs: retry bounds, admission limits, retention
//   - Workflow: worker count and daemon intervals
//   - Logging: log format and level
type Config struct {
	Paths        Paths        `toml:"paths"`
	Segmentation Segmentation `toml:"segmentation"`
	Generation   Generation   `toml:"generation"`
	Encoder      Encoder      `toml:"encoder"`
	Pipeline     Pipeline     `toml:"pipeline"`
	Jobs         Jobs         `toml:"jobs"`
	Workflow     Workflow     `toml:"workflow"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/framelift/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("framelift.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for extraction and encoding.
func (c *Config) FFmpegBinary() string {
	if binary := strings.TrimSpace(c.Encoder.FFmpegBinary); binary != "" {
		return binary
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if binary := strings.TrimSpace(c.Encoder.FFprobeBinary); binary != "" {
		return binary
	}
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
