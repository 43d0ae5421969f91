package testsupport

import (
	"testing"

	"framelift/internal/config"
	"framelift/internal/jobs"
)

// MustOpenRegistry opens a job registry backed by the test config and closes it
// when the test finishes.
func MustOpenRegistry(t testing.TB, cfg *config.Config) *jobs.Registry {
	t.Helper()

	registry, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() {
		if err := registry.Close(); err != nil {
			t.Errorf("close registry: %v", err)
		}
	})
	return registry
}
