package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = "id, owner_id, kind, status, progress, current_step, retry_count, max_retries, params_json, output_ref, result_json, error_message, created_at, updated_at, started_at, completed_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id           string
		ownerID      string
		kindStr      string
		statusStr    string
		progress     sql.NullFloat64
		currentStep  sql.NullString
		retryCount   int
		maxRetries   int
		paramsJSON   sql.NullString
		outputRef    sql.NullString
		resultJSON   sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&kindStr,
		&statusStr,
		&progress,
		&currentStep,
		&retryCount,
		&maxRetries,
		&paramsJSON,
		&outputRef,
		&resultJSON,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:           id,
		OwnerID:      ownerID,
		Kind:         Kind(kindStr),
		Status:       Status(statusStr),
		Progress:     progress.Float64,
		CurrentStep:  currentStep.String,
		RetryCount:   retryCount,
		MaxRetries:   maxRetries,
		ParamsJSON:   paramsJSON.String,
		OutputRef:    outputRef.String,
		ResultJSON:   resultJSON.String,
		ErrorMessage: errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			record.CompletedAt = &completed
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// rowQueryer lets the processing counts run against the pooled connection or
// an admission transaction.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countProcessingOwner(ctx context.Context, q rowQueryer, ownerID string) (int, error) {
	var count int
	row := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE owner_id = ? AND status = ?`,
		ownerID, StatusProcessing)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count owner processing: %w", err)
	}
	return count, nil
}

func countProcessingAll(ctx context.Context, q rowQueryer) (int, error) {
	var count int
	row := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE status = ?`, StatusProcessing)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count processing: %w", err)
	}
	return count, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
