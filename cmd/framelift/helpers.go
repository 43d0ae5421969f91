package main

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"framelift/internal/jobs"
)

var labelCaser = cases.Title(language.English)

func statusLabel(status jobs.Status) string {
	return labelCaser.String(string(status))
}

func kindLabel(kind jobs.Kind) string {
	return labelCaser.String(string(kind))
}

func formatProgress(record *jobs.Record) string {
	return fmt.Sprintf("%.0f%%", record.Progress)
}

func formatTimestamp(value time.Time) string {
	return value.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(value time.Duration) string {
	if value < time.Second {
		return "<1s"
	}
	return value.Round(time.Second).String()
}

func buildJobRows(records []*jobs.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.ID,
			kindLabel(record.Kind),
			statusLabel(record.Status),
			formatProgress(record),
			record.CurrentStep,
			formatTimestamp(record.CreatedAt),
		})
	}
	return rows
}

var jobListHeaders = []string{"ID", "Kind", "Status", "Progress", "Step", "Created"}

var jobListAlignments = []columnAlignment{
	alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft,
}

// jobView is the JSON shape shared by list and show output.
type jobView struct {
	ID                 string     `json:"id"`
	OwnerID            string     `json:"owner_id"`
	Kind               string     `json:"kind"`
	Status             string     `json:"status"`
	Progress           float64    `json:"progress"`
	CurrentStep        string     `json:"current_step,omitempty"`
	RetryCount         int        `json:"retry_count"`
	MaxRetries         int        `json:"max_retries"`
	OutputRef          string     `json:"output_ref,omitempty"`
	ResultJSON         string     `json:"result,omitempty"`
	ErrorMessage       string     `json:"error,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	EstimatedRemaining string     `json:"estimated_remaining,omitempty"`
}

func newJobView(record *jobs.Record, estimate *time.Duration) jobView {
	view := jobView{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		Kind:         string(record.Kind),
		Status:       string(record.Status),
		Progress:     record.Progress,
		CurrentStep:  record.CurrentStep,
		RetryCount:   record.RetryCount,
		MaxRetries:   record.MaxRetries,
		OutputRef:    record.OutputRef,
		ResultJSON:   record.ResultJSON,
		ErrorMessage: record.ErrorMessage,
		CreatedAt:    record.CreatedAt,
		StartedAt:    record.StartedAt,
		CompletedAt:  record.CompletedAt,
	}
	if estimate != nil {
		view.EstimatedRemaining = formatDuration(*estimate)
	}
	return view
}
