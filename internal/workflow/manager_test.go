package workflow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"framelift/internal/jobs"
	"framelift/internal/pipeline"
	"framelift/internal/testsupport"
	"framelift/internal/workflow"
)

type runnerFunc func(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (workflow.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (workflow.Outcome, error) {
	return f(ctx, record, progress)
}

func waitForStatus(t *testing.T, registry *jobs.Registry, id string, want jobs.Status) *jobs.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, err := registry.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if record.Status == want {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	record, _ := registry.GetByID(context.Background(), id)
	t.Fatalf("job %s never reached %s, currently %#v", id, want, record)
	return nil
}

func TestManagerCompletesPendingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)

	runners := map[jobs.Kind]workflow.JobRunner{
		jobs.KindBackground: runnerFunc(func(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (workflow.Outcome, error) {
			progress(50, "Processing frames...")
			return workflow.Outcome{OutputRef: "/out/done.mp4", ResultJSON: `{"frames_in":4}`}, nil
		}),
	}

	record, err := registry.Create(context.Background(),
		jobs.NewRecord("owner-1", jobs.KindBackground, `{"source":"in.mp4"}`, 3),
		jobs.AdmissionPolicy{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	manager := workflow.NewManagerWithRunners(cfg, registry, nil, runners)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	completed := waitForStatus(t, registry, record.ID, jobs.StatusCompleted)
	if completed.OutputRef != "/out/done.mp4" {
		t.Fatalf("unexpected output ref: %q", completed.OutputRef)
	}
	if completed.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", completed.Progress)
	}
}

func TestManagerAutoRetriesFailedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Jobs.RetryDelay = 0
	cfg.Workflow.QueuePollInterval = 1
	registry := testsupport.MustOpenRegistry(t, cfg)

	var attempts atomic.Int64
	runners := map[jobs.Kind]workflow.JobRunner{
		jobs.KindBackground: runnerFunc(func(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (workflow.Outcome, error) {
			if attempts.Add(1) == 1 {
				return workflow.Outcome{}, errors.New("transient encode failure")
			}
			return workflow.Outcome{OutputRef: "/out/retry.mp4"}, nil
		}),
	}

	record, err := registry.Create(context.Background(),
		jobs.NewRecord("owner-1", jobs.KindBackground, `{"source":"in.mp4"}`, 3),
		jobs.AdmissionPolicy{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	manager := workflow.NewManagerWithRunners(cfg, registry, nil, runners)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	completed := waitForStatus(t, registry, record.ID, jobs.StatusCompleted)
	if completed.RetryCount != 1 {
		t.Fatalf("expected one retry, got %d", completed.RetryCount)
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected two attempts, got %d", attempts.Load())
	}
}

func TestManagerCancelInterruptsRunningJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)

	started := make(chan struct{})
	runners := map[jobs.Kind]workflow.JobRunner{
		jobs.KindBackground: runnerFunc(func(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (workflow.Outcome, error) {
			close(started)
			<-ctx.Done()
			return workflow.Outcome{}, ctx.Err()
		}),
	}

	record, err := registry.Create(context.Background(),
		jobs.NewRecord("owner-1", jobs.KindBackground, `{"source":"in.mp4"}`, 3),
		jobs.AdmissionPolicy{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	manager := workflow.NewManagerWithRunners(cfg, registry, nil, runners)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	// Registry transition first, then interrupt the run, facade-style.
	ok, err := registry.Cancel(context.Background(), record.ID)
	if err != nil || !ok {
		t.Fatalf("Cancel failed: ok=%v err=%v", ok, err)
	}
	if !manager.CancelJob(record.ID) {
		t.Fatal("expected job to be actively processing")
	}

	cancelled := waitForStatus(t, registry, record.ID, jobs.StatusCancelled)
	if cancelled.OutputRef != "" {
		t.Fatal("cancelled job must surface no output")
	}
}

func TestManagerFailsJobWithoutRunner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)

	runners := map[jobs.Kind]workflow.JobRunner{
		jobs.KindBackground: runnerFunc(func(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (workflow.Outcome, error) {
			return workflow.Outcome{}, nil
		}),
	}

	record, err := registry.Create(context.Background(),
		jobs.NewRecord("owner-1", jobs.KindGeneration, `{"prompt":"fox"}`, 0),
		jobs.AdmissionPolicy{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	manager := workflow.NewManagerWithRunners(cfg, registry, nil, runners)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	failed := waitForStatus(t, registry, record.ID, jobs.StatusFailed)
	if failed.ErrorMessage == "" {
		t.Fatal("expected configuration error message")
	}
}

func TestManagerStartResetsStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record, err := registry.Create(ctx,
		jobs.NewRecord("owner-1", jobs.KindBackground, `{"source":"in.mp4"}`, 3),
		jobs.AdmissionPolicy{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}

	runners := map[jobs.Kind]workflow.JobRunner{
		jobs.KindBackground: runnerFunc(func(ctx context.Context, record *jobs.Record, progress pipeline.ProgressFunc) (workflow.Outcome, error) {
			return workflow.Outcome{OutputRef: "/out/recovered.mp4"}, nil
		}),
	}

	manager := workflow.NewManagerWithRunners(cfg, registry, nil, runners)
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	// The stale processing row is reset to pending and then reprocessed.
	waitForStatus(t, registry, record.ID, jobs.StatusCompleted)
}
