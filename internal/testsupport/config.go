package testsupport

import (
	"path/filepath"
	"testing"

	"framelift/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Segmentation.Endpoint = "http://127.0.0.1:0/remove"
	cfgVal.Generation.Endpoint = "http://127.0.0.1:0/generate"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSegmentationEndpoint overrides the segmentation endpoint on the test config.
func WithSegmentationEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Segmentation.Endpoint = endpoint
	}
}

// WithAdmissionLimits sets per-owner and global processing limits on the test config.
func WithAdmissionLimits(perOwner, global int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.PerOwnerLimit = perOwner
		b.cfg.Jobs.GlobalLimit = global
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
