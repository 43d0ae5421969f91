package jobs

import (
	"context"
	"fmt"
	"time"
)

// CountProcessing returns the number of processing records for one owner.
// Admission runs the same count inside its transaction.
func (r *Registry) CountProcessing(ctx context.Context, ownerID string) (int, error) {
	return countProcessingOwner(ensureContext(ctx), r.db, ownerID)
}

// CountProcessingAll returns the number of processing records across all owners.
func (r *Registry) CountProcessingAll(ctx context.Context) (int, error) {
	return countProcessingAll(ensureContext(ctx), r.db)
}

// ResetStuckProcessing returns processing records to pending after a daemon
// restart. Orphaned records would otherwise hold admission slots forever.
func (r *Registry) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := r.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, progress = 0, current_step = ?, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending, DaemonStopStep, formatTime(time.Now().UTC()), StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// Sweep deletes terminal records whose completion is older than maxAge.
func (r *Registry) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := r.execWithRetry(ctx,
		`DELETE FROM jobs
         WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		StatusCompleted, StatusFailed, StatusCancelled, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sweep jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of records grouped by status.
func (r *Registry) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates registry state for diagnostic output.
func (r *Registry) Health(ctx context.Context) (Summary, error) {
	stats, err := r.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{}
	for status, count := range stats {
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending += count
		case StatusProcessing:
			summary.Processing += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		case StatusCancelled:
			summary.Cancelled += count
		}
	}
	return summary, nil
}
