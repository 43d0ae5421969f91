package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"framelift/internal/services"
)

// NewRecord builds an unsaved pending record for a submission.
func NewRecord(ownerID string, kind Kind, paramsJSON string, maxRetries int) *Record {
	return &Record{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Kind:       kind,
		Status:     StatusPending,
		ParamsJSON: paramsJSON,
		MaxRetries: maxRetries,
	}
}

// Create inserts a pending record, enforcing admission limits in the same
// transaction. A rejected submission leaves no row behind.
func (r *Registry) Create(ctx context.Context, record *Record, policy AdmissionPolicy) (*Record, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	if record.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", services.ErrValidation)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	err := retryOnBusy(ctx, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin admission tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if policy.PerOwnerLimit > 0 {
			ownerCount, err := countProcessingOwner(ctx, tx, record.OwnerID)
			if err != nil {
				return err
			}
			if ownerCount >= policy.PerOwnerLimit {
				return fmt.Errorf("%w: owner %s has %d processing jobs (limit %d)",
					services.ErrConcurrencyLimit, record.OwnerID, ownerCount, policy.PerOwnerLimit)
			}
		}
		if policy.GlobalLimit > 0 {
			globalCount, err := countProcessingAll(ctx, tx)
			if err != nil {
				return err
			}
			if globalCount >= policy.GlobalLimit {
				return fmt.Errorf("%w: %d processing jobs (global limit %d)",
					services.ErrConcurrencyLimit, globalCount, policy.GlobalLimit)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (
                id, owner_id, kind, status, progress, current_step, retry_count, max_retries,
                params_json, created_at, updated_at
            ) VALUES (?, ?, ?, ?, 0, NULL, 0, ?, ?, ?, ?)`,
			record.ID,
			record.OwnerID,
			record.Kind,
			StatusPending,
			record.MaxRetries,
			nullableString(record.ParamsJSON),
			formatTime(now),
			formatTime(now),
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit admission tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, record.ID)
}

// GetByID fetches a record by identifier.
func (r *Registry) GetByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM jobs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return record, nil
}

// ListByOwner returns the owner's records, newest first.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM jobs WHERE owner_id = ? ORDER BY created_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list by owner: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// List returns records filtered by status set (or all records when no status is provided).
func (r *Registry) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + recordColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = r.db.QueryContext(ensureContext(ctx), baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = r.db.QueryContext(ensureContext(ctx), query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// NextPending returns the oldest pending record, or nil when the queue is empty.
func (r *Registry) NextPending(ctx context.Context) (*Record, error) {
	row := r.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusPending)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return record, nil
}

// Remove deletes a record by identifier.
func (r *Registry) Remove(ctx context.Context, id string) (bool, error) {
	res, err := r.execWithRetry(ensureContext(ctx), `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
