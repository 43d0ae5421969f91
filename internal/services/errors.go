package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFrameExtraction marks a source video that could not be read or decoded.
	// Always fatal for the run; individual frames are never retried.
	ErrFrameExtraction = errors.New("frame extraction error")
	// ErrSegmentation marks a per-frame segmentation failure. Recoverable by
	// substituting the original frame; never fatal on its own.
	ErrSegmentation = errors.New("segmentation failure")
	// ErrEncoding marks a reassembly failure after both encoder paths failed.
	ErrEncoding = errors.New("encoding error")
	// ErrConcurrencyLimit marks a submission rejected at the admission gate.
	ErrConcurrencyLimit = errors.New("concurrency limit exceeded")
	// ErrNotFound marks a lookup of an unknown or expired identifier.
	ErrNotFound = errors.New("not found")
	// ErrIllegalTransition marks a state change invalid for the current status.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrRetryExhausted marks a retry attempted at the retry bound.
	ErrRetryExhausted = errors.New("retry exhausted")
	// ErrTimeout marks an external call that exceeded its caller-side deadline.
	ErrTimeout = errors.New("timeout")
	// ErrValidation marks bad inputs or parameters.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures worth retrying.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
