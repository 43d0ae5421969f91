package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"framelift/internal/jobs"
	"framelift/internal/logging"
	"framelift/internal/services"
)

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		record, err := m.registry.NextPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue poll failed", logging.Error(err))
			if !sleepCtx(ctx, m.errorRetryInterval) {
				return
			}
			continue
		}
		if record == nil {
			if !sleepCtx(ctx, m.pollInterval) {
				return
			}
			continue
		}

		claimed, err := m.registry.TransitionProcessing(ctx, record.ID)
		if err != nil {
			// Another worker won the claim or the job was cancelled first.
			if errors.Is(err, services.ErrIllegalTransition) || errors.Is(err, services.ErrNotFound) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			logger.Warn("claim failed", logging.String(logging.FieldJobID, record.ID), logging.Error(err))
			if !sleepCtx(ctx, m.errorRetryInterval) {
				return
			}
			continue
		}

		m.processJob(ctx, claimed)
	}
}

func (m *Manager) processJob(ctx context.Context, record *jobs.Record) {
	jobLogger := m.logger.With(
		logging.String(logging.FieldJobID, record.ID),
		logging.String(logging.FieldOwner, record.OwnerID),
		logging.String(logging.FieldKind, string(record.Kind)),
		logging.String(logging.FieldCorrelationID, uuid.NewString()),
	)

	runner, ok := m.runners[record.Kind]
	if !ok {
		message := services.Wrap(services.ErrConfiguration, "workflow", "dispatch",
			"no runner configured for kind "+string(record.Kind), nil).Error()
		if _, err := m.registry.Fail(ctx, record.ID, message); err != nil {
			jobLogger.Warn("persist failure failed", logging.Error(err))
		}
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	m.trackJob(record.ID, cancel)
	defer func() {
		m.untrackJob(record.ID)
		cancel()
	}()

	jobLogger.Info("job started")
	sampler := logging.NewProgressSampler(5)
	progress := func(percent float64, step string) {
		if sampler.ShouldLog(percent, step) {
			jobLogger.Info("job progress",
				logging.Float64("percent", percent),
				logging.String(logging.FieldStage, step))
		}
		if err := m.registry.UpdateProgress(ctx, record.ID, percent, step); err != nil {
			// A cancel racing the run makes progress writes illegal; that is expected.
			if !errors.Is(err, services.ErrIllegalTransition) {
				jobLogger.Warn("persist progress failed", logging.Error(err))
			}
		}
	}

	outcome, runErr := runner.Run(jobCtx, record, progress)

	switch {
	case runErr == nil:
		if _, err := m.registry.Complete(ctx, record.ID, outcome.OutputRef, outcome.ResultJSON); err != nil {
			if errors.Is(err, services.ErrIllegalTransition) {
				// Cancel won the race after the run finished; the record stays cancelled.
				jobLogger.Info("completion discarded, job no longer processing")
				return
			}
			jobLogger.Warn("persist completion failed", logging.Error(err))
			return
		}
		jobLogger.Info("job completed", logging.String("output", outcome.OutputRef))

	case jobCtx.Err() != nil && ctx.Err() == nil:
		// User cancel: the facade already moved the record to cancelled.
		jobLogger.Info("job cancelled")

	case ctx.Err() != nil:
		// Daemon shutdown: the record stays processing and is reset at next startup.
		jobLogger.Info("job interrupted by shutdown")

	default:
		failed, err := m.registry.Fail(ctx, record.ID, runErr.Error())
		if err != nil {
			if errors.Is(err, services.ErrIllegalTransition) {
				jobLogger.Info("failure discarded, job no longer processing")
				return
			}
			jobLogger.Warn("persist failure failed", logging.Error(err))
			return
		}
		jobLogger.Warn("job failed", logging.Error(runErr))
		if m.autoRetry && failed.CanRetry() {
			m.scheduleRetry(ctx, jobLogger, failed)
		}
	}
}

// scheduleRetry moves a failed job back to pending after a flat delay.
func (m *Manager) scheduleRetry(ctx context.Context, logger *slog.Logger, record *jobs.Record) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !sleepCtx(ctx, m.retryDelay) {
			return
		}
		ok, err := m.registry.Retry(ctx, record.ID)
		if err != nil {
			if !errors.Is(err, services.ErrRetryExhausted) {
				logger.Warn("retry failed", logging.Error(err))
			}
			return
		}
		if ok {
			logger.Info("job requeued for retry",
				logging.Int("attempt", record.RetryCount+1),
				logging.Int("max_retries", record.MaxRetries))
		}
	}()
}

func (m *Manager) runSweeper(ctx context.Context) {
	defer m.wg.Done()
	if m.sweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		removed, err := m.registry.Sweep(ctx, m.retention)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("sweep failed", logging.Error(err))
			}
			continue
		}
		if removed > 0 {
			m.logger.Info("swept old jobs", logging.Int64("removed", removed))
		}
	}
}

func sleepCtx(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		duration = time.Second
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
