package daemon_test

import (
	"context"
	"os"
	"testing"

	"framelift/internal/daemon"
	"framelift/internal/jobs"
	"framelift/internal/testsupport"
	"framelift/internal/workflow"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *jobs.Registry) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	manager := workflow.NewManagerWithRunners(cfg, registry, nil, nil)
	d, err := daemon.New(cfg, registry, nil, manager)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, registry
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("daemon should report running after Start")
	}
	if _, err := os.Stat(d.LockPath()); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	d.Stop()
	if d.Running() {
		t.Fatal("daemon should report stopped after Stop")
	}

	// Restart after a clean stop works.
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	d.Stop()
}

func TestDaemonStartTwiceFails(t *testing.T) {
	d, _ := newDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail while running")
	}
}
