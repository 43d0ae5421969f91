package jobs

import (
	"context"
	"fmt"
	"time"

	"framelift/internal/services"
)

// StepStarting is the step label set when a worker claims a pending job.
const StepStarting = "Starting..."

// TransitionProcessing claims a pending record for a worker. The conditional
// update makes claiming race-safe: exactly one caller wins per record.
func (r *Registry) TransitionProcessing(ctx context.Context, id string) (*Record, error) {
	now := formatTime(time.Now().UTC())
	res, err := r.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, started_at = COALESCE(started_at, ?), current_step = ?,
             error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing, now, StepStarting, now, id, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("transition processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, r.transitionConflict(ctx, id, StatusProcessing)
	}
	return r.GetByID(ctx, id)
}

// UpdateProgress records pipeline progress for a processing job. Percent is
// clamped to [0,100] and never moves backwards.
func (r *Registry) UpdateProgress(ctx context.Context, id string, percent float64, step string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	res, err := r.execWithRetry(ctx,
		`UPDATE jobs
         SET progress = MAX(progress, ?), current_step = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		percent, nullableString(step), formatTime(time.Now().UTC()), id, StatusProcessing)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return r.transitionConflict(ctx, id, StatusProcessing)
	}
	return nil
}

// Complete marks a processing record as completed with its pipeline result.
func (r *Registry) Complete(ctx context.Context, id, outputRef, resultJSON string) (*Record, error) {
	now := formatTime(time.Now().UTC())
	res, err := r.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, progress = 100, current_step = NULL, output_ref = ?,
             result_json = ?, error_message = NULL, completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, nullableString(outputRef), nullableString(resultJSON),
		now, now, id, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, r.transitionConflict(ctx, id, StatusCompleted)
	}
	return r.GetByID(ctx, id)
}

// Fail marks a processing record as failed with the fatal error message.
func (r *Registry) Fail(ctx context.Context, id, message string) (*Record, error) {
	now := formatTime(time.Now().UTC())
	res, err := r.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, current_step = NULL, error_message = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, nullableString(message), now, now, id, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, r.transitionConflict(ctx, id, StatusFailed)
	}
	return r.GetByID(ctx, id)
}

// Cancel moves a non-terminal record to cancelled. It reports false without
// error when the record already reached a terminal state, so a cancel racing a
// completion is a no-op rather than a crash.
func (r *Registry) Cancel(ctx context.Context, id string) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := r.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, current_step = NULL, completed_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled, now, now, id, StatusPending, StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// Retry moves a failed record back to pending when retry budget remains. It
// reports false with ErrRetryExhausted once the budget is spent, and false
// without error when the record is not in a failed state.
func (r *Registry) Retry(ctx context.Context, id string) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := r.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, retry_count = retry_count + 1, progress = 0, current_step = NULL,
             output_ref = NULL, result_json = NULL, error_message = NULL,
             started_at = NULL, completed_at = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND retry_count < max_retries`,
		StatusPending, now, id, StatusFailed)
	if err != nil {
		return false, fmt.Errorf("retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	record, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if record.Status == StatusFailed {
		return false, fmt.Errorf("%w: job %s used %d of %d retries",
			services.ErrRetryExhausted, id, record.RetryCount, record.MaxRetries)
	}
	return false, nil
}

func (r *Registry) transitionConflict(ctx context.Context, id string, target Status) error {
	record, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s, cannot move to %s",
		services.ErrIllegalTransition, id, record.Status, target)
}
