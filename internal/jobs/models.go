package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a job record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts user input into a Status value.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[status]; !ok {
		return "", fmt.Errorf("unknown status %q", value)
	}
	return status, nil
}

// IsTerminal reports whether a status admits no further transitions except retry.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Kind identifies which enhancement pipeline a job runs.
type Kind string

const (
	KindBackground Kind = "background"
	KindQuality    Kind = "quality"
	KindGeneration Kind = "generation"
)

var allKinds = []Kind{KindBackground, KindQuality, KindGeneration}

// ParseKind converts user input into a Kind value.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allKinds {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", value)
}

// DaemonStopStep is the step label set when jobs are reset due to daemon restart.
const DaemonStopStep = "Reset from stuck processing"

// Record is a job row persisted in SQLite.
type Record struct {
	ID           string
	OwnerID      string
	Kind         Kind
	Status       Status
	Progress     float64
	CurrentStep  string
	RetryCount   int
	MaxRetries   int
	ParamsJSON   string
	OutputRef    string
	ResultJSON   string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// IsTerminal reports whether the record reached a final state.
func (r *Record) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// IsProcessing reports whether a worker currently owns the record.
func (r *Record) IsProcessing() bool {
	return r.Status == StatusProcessing
}

// CanRetry reports whether a failed record has retry budget left.
func (r *Record) CanRetry() bool {
	return r.Status == StatusFailed && r.RetryCount < r.MaxRetries
}

// EstimatedCompletion projects the remaining processing time from observed
// progress. The estimate is undefined until the job is processing and has
// reported nonzero progress.
func (r *Record) EstimatedCompletion(now time.Time) (time.Duration, bool) {
	if r.Status != StatusProcessing || r.StartedAt == nil || r.Progress <= 0 {
		return 0, false
	}
	elapsed := now.Sub(*r.StartedAt)
	if elapsed <= 0 {
		return 0, false
	}
	total := time.Duration(float64(elapsed) / (r.Progress / 100))
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Summary describes aggregated registry counts per lifecycle state.
type Summary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// AdmissionPolicy bounds concurrent processing jobs at admission time.
type AdmissionPolicy struct {
	PerOwnerLimit int
	GlobalLimit   int
}
