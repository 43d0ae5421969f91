package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"framelift/internal/jobs"
	"framelift/internal/services"
	"framelift/internal/testsupport"
)

func newPending(t *testing.T, registry *jobs.Registry, owner string) *jobs.Record {
	t.Helper()
	record, err := registry.Create(context.Background(),
		jobs.NewRecord(owner, jobs.KindBackground, `{"source":"in.mp4"}`, 3),
		jobs.AdmissionPolicy{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return record
}

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)

	record := newPending(t, registry, "owner-1")
	if record.ID == "" {
		t.Fatal("expected record ID to be assigned")
	}
	if record.Status != jobs.StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}
	if record.MaxRetries != 3 {
		t.Fatalf("expected max retries 3, got %d", record.MaxRetries)
	}

	fetched, err := registry.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.OwnerID != "owner-1" || fetched.ParamsJSON != `{"source":"in.mp4"}` {
		t.Fatalf("unexpected fetched record: %#v", fetched)
	}
}

func TestGetByIDUnknownReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)

	_, err := registry.GetByID(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdmissionGateRejectsWithoutCreatingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	policy := jobs.AdmissionPolicy{PerOwnerLimit: 1, GlobalLimit: 10}

	first, err := registry.Create(ctx, jobs.NewRecord("owner-1", jobs.KindBackground, "", 3), policy)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := registry.TransitionProcessing(ctx, first.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}

	_, err = registry.Create(ctx, jobs.NewRecord("owner-1", jobs.KindBackground, "", 3), policy)
	if !errors.Is(err, services.ErrConcurrencyLimit) {
		t.Fatalf("expected ErrConcurrencyLimit, got %v", err)
	}

	records, err := registry.ListByOwner(ctx, "owner-1", 0)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("rejected submission must create no record, got %d records", len(records))
	}

	// A different owner is unaffected by the per-owner gate.
	if _, err := registry.Create(ctx, jobs.NewRecord("owner-2", jobs.KindBackground, "", 3), policy); err != nil {
		t.Fatalf("Create for second owner failed: %v", err)
	}
}

func TestAdmissionGateGlobalLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	policy := jobs.AdmissionPolicy{PerOwnerLimit: 5, GlobalLimit: 2}

	for i := 0; i < 2; i++ {
		record, err := registry.Create(ctx,
			jobs.NewRecord(fmt.Sprintf("owner-%d", i), jobs.KindBackground, "", 3), policy)
		if err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
		if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
			t.Fatalf("TransitionProcessing %d failed: %v", i, err)
		}
	}

	_, err := registry.Create(ctx, jobs.NewRecord("owner-9", jobs.KindBackground, "", 3), policy)
	if !errors.Is(err, services.ErrConcurrencyLimit) {
		t.Fatalf("expected global ErrConcurrencyLimit, got %v", err)
	}
}

func TestCountProcessingTracksClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	first := newPending(t, registry, "owner-1")
	newPending(t, registry, "owner-1") // stays pending, never counted
	other := newPending(t, registry, "owner-2")

	for _, id := range []string{first.ID, other.ID} {
		if _, err := registry.TransitionProcessing(ctx, id); err != nil {
			t.Fatalf("TransitionProcessing failed: %v", err)
		}
	}

	ownerCount, err := registry.CountProcessing(ctx, "owner-1")
	if err != nil {
		t.Fatalf("CountProcessing failed: %v", err)
	}
	if ownerCount != 1 {
		t.Fatalf("expected 1 processing job for owner-1, got %d", ownerCount)
	}

	total, err := registry.CountProcessingAll(ctx)
	if err != nil {
		t.Fatalf("CountProcessingAll failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 processing jobs in total, got %d", total)
	}

	if _, err := registry.Complete(ctx, other.ID, "/out/done.mp4", ""); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	total, err = registry.CountProcessingAll(ctx)
	if err != nil {
		t.Fatalf("CountProcessingAll failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("completed job must free its slot, got %d", total)
	}
}

func TestTransitionProcessingClaimsOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")

	claimed, err := registry.TransitionProcessing(ctx, record.ID)
	if err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}
	if claimed.Status != jobs.StatusProcessing {
		t.Fatalf("expected processing, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Fatal("expected started_at to be set")
	}

	if _, err := registry.TransitionProcessing(ctx, record.ID); !errors.Is(err, services.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition on second claim, got %v", err)
	}
}

func TestUpdateProgressIsMonotonicAndClamped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")
	if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}

	steps := []struct {
		percent float64
		want    float64
	}{
		{30, 30},
		{20, 30},  // never decreases
		{150, 100}, // clamped high
		{-5, 100},  // clamped low, still monotonic
	}
	for _, step := range steps {
		if err := registry.UpdateProgress(ctx, record.ID, step.percent, "Processing frames..."); err != nil {
			t.Fatalf("UpdateProgress(%v) failed: %v", step.percent, err)
		}
		current, err := registry.GetByID(ctx, record.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if current.Progress != step.want {
			t.Fatalf("after UpdateProgress(%v): progress = %v, want %v", step.percent, current.Progress, step.want)
		}
	}
}

func TestUpdateProgressRejectedOutsideProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")
	err := registry.UpdateProgress(ctx, record.ID, 10, "Extracting frames...")
	if !errors.Is(err, services.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestCompleteRecordsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")
	if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}

	completed, err := registry.Complete(ctx, record.ID, "/out/result.mp4", `{"frames":12}`)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", completed.Progress)
	}
	if completed.OutputRef != "/out/result.mp4" || completed.ResultJSON != `{"frames":12}` {
		t.Fatalf("unexpected result fields: %#v", completed)
	}
	if completed.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestCancelPendingWithoutProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")

	ok, err := registry.Cancel(ctx, record.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !ok {
		t.Fatal("expected pending cancel to succeed")
	}

	cancelled, err := registry.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if cancelled.Status != jobs.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.StartedAt != nil {
		t.Fatal("pending job cancelled without ever processing must have no started_at")
	}
}

func TestCancelCompletedIsFalseNoOp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")
	if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}
	if _, err := registry.Complete(ctx, record.ID, "/out/result.mp4", ""); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	ok, err := registry.Cancel(ctx, record.ID)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if ok {
		t.Fatal("cancel of completed job must report false")
	}

	after, err := registry.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != jobs.StatusCompleted {
		t.Fatalf("completed record must stay completed, got %s", after.Status)
	}
}

func TestRetryBookkeepingAndExhaustion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record, err := registry.Create(ctx,
		jobs.NewRecord("owner-1", jobs.KindBackground, "", 2), jobs.AdmissionPolicy{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	failOnce := func() {
		t.Helper()
		if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
			t.Fatalf("TransitionProcessing failed: %v", err)
		}
		if _, err := registry.Fail(ctx, record.ID, "encode failed"); err != nil {
			t.Fatalf("Fail failed: %v", err)
		}
	}

	for attempt := 1; attempt <= 2; attempt++ {
		failOnce()
		ok, err := registry.Retry(ctx, record.ID)
		if err != nil {
			t.Fatalf("Retry %d failed: %v", attempt, err)
		}
		if !ok {
			t.Fatalf("expected retry %d to be granted", attempt)
		}
		current, err := registry.GetByID(ctx, record.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if current.Status != jobs.StatusPending {
			t.Fatalf("expected pending after retry, got %s", current.Status)
		}
		if current.RetryCount != attempt {
			t.Fatalf("expected retry_count %d, got %d", attempt, current.RetryCount)
		}
		if current.Progress != 0 || current.ErrorMessage != "" || current.StartedAt != nil {
			t.Fatalf("retry must reset progress and error state: %#v", current)
		}
	}

	failOnce()
	ok, err := registry.Retry(ctx, record.ID)
	if ok {
		t.Fatal("expected retry to be denied after budget spent")
	}
	if !errors.Is(err, services.ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
}

func TestRetryOfNonFailedIsFalseNoOp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")
	ok, err := registry.Retry(ctx, record.ID)
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if ok {
		t.Fatal("retry of pending job must report false")
	}
}

func TestListByOwnerNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		record := newPending(t, registry, "owner-1")
		ids = append(ids, record.ID)
		time.Sleep(5 * time.Millisecond)
	}
	newPending(t, registry, "owner-2")

	records, err := registry.ListByOwner(ctx, "owner-1", 2)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != ids[2] || records[1].ID != ids[1] {
		t.Fatalf("expected newest first, got %s then %s", records[0].ID, records[1].ID)
	}
}

func TestNextPendingOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	first := newPending(t, registry, "owner-1")
	time.Sleep(5 * time.Millisecond)
	newPending(t, registry, "owner-1")

	next, err := registry.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending %s, got %#v", first.ID, next)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	record := newPending(t, registry, "owner-1")
	if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}

	reset, err := registry.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset record, got %d", reset)
	}

	after, err := registry.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != jobs.StatusPending {
		t.Fatalf("expected pending after reset, got %s", after.Status)
	}
	if after.StartedAt != nil {
		t.Fatal("expected started_at cleared after reset")
	}
}

func TestSweepRemovesOldTerminalRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	old := newPending(t, registry, "owner-1")
	if _, err := registry.TransitionProcessing(ctx, old.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}
	if _, err := registry.Complete(ctx, old.ID, "/out/old.mp4", ""); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	live := newPending(t, registry, "owner-1")

	time.Sleep(20 * time.Millisecond)
	removed, err := registry.Sweep(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 swept record, got %d", removed)
	}

	if _, err := registry.GetByID(ctx, old.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected swept record gone, got %v", err)
	}
	if _, err := registry.GetByID(ctx, live.ID); err != nil {
		t.Fatalf("pending record must survive sweep: %v", err)
	}
}

func TestEstimatedCompletion(t *testing.T) {
	started := time.Now().Add(-30 * time.Second)
	record := &jobs.Record{
		Status:    jobs.StatusProcessing,
		StartedAt: &started,
		Progress:  25,
	}

	remaining, ok := record.EstimatedCompletion(time.Now())
	if !ok {
		t.Fatal("expected estimate for processing job with progress")
	}
	// 25% in 30s projects roughly 90s remaining.
	if remaining < 80*time.Second || remaining > 100*time.Second {
		t.Fatalf("unexpected estimate: %v", remaining)
	}

	record.Progress = 0
	if _, ok := record.EstimatedCompletion(time.Now()); ok {
		t.Fatal("estimate must be undefined at zero progress")
	}

	record.Progress = 50
	record.Status = jobs.StatusPending
	if _, ok := record.EstimatedCompletion(time.Now()); ok {
		t.Fatal("estimate must be undefined outside processing")
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	registry := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	newPending(t, registry, "owner-1")
	record := newPending(t, registry, "owner-1")
	if _, err := registry.TransitionProcessing(ctx, record.ID); err != nil {
		t.Fatalf("TransitionProcessing failed: %v", err)
	}

	stats, err := registry.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[jobs.StatusPending] != 1 || stats[jobs.StatusProcessing] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := registry.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Processing != 1 {
		t.Fatalf("unexpected health: %#v", health)
	}
}
