package enhance

import (
	"context"
	"log/slog"
	"time"

	"framelift/internal/config"
	"framelift/internal/jobs"
	"framelift/internal/logging"
	"framelift/internal/services"
)

// Canceller interrupts in-flight runs. The workflow manager implements it; a
// nil canceller limits cancellation to jobs that have not started processing.
type Canceller interface {
	CancelJob(id string) bool
}

// JobStatus is the caller-facing view of a record.
type JobStatus struct {
	Record              *jobs.Record
	EstimatedCompletion *time.Duration
}

// Service coordinates submissions against the registry.
type Service struct {
	registry  *jobs.Registry
	canceller Canceller
	policy    jobs.AdmissionPolicy
	retries   int
	logger    *slog.Logger
}

// NewService constructs the facade.
func NewService(cfg *config.Config, registry *jobs.Registry, canceller Canceller, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		registry:  registry,
		canceller: canceller,
		policy: jobs.AdmissionPolicy{
			PerOwnerLimit: cfg.Jobs.PerOwnerLimit,
			GlobalLimit:   cfg.Jobs.GlobalLimit,
		},
		retries: cfg.Jobs.MaxRetries,
		logger:  logging.NewComponentLogger(logger, "enhance"),
	}
}

// Submit admits a new job and returns its identifier. Admission limits are a
// hard gate: a rejected submission returns ErrConcurrencyLimit and creates
// nothing.
func (s *Service) Submit(ctx context.Context, kind jobs.Kind, ownerID string, params jobs.Params) (string, error) {
	if _, err := jobs.ParseKind(string(kind)); err != nil {
		return "", services.Wrap(services.ErrValidation, "enhance", "submit", err.Error(), nil)
	}
	if err := params.Validate(kind); err != nil {
		return "", services.Wrap(services.ErrValidation, "enhance", "submit", err.Error(), nil)
	}
	encoded, err := params.Encode()
	if err != nil {
		return "", err
	}

	record, err := s.registry.Create(ctx, jobs.NewRecord(ownerID, kind, encoded, s.retries), s.policy)
	if err != nil {
		return "", err
	}

	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, record.ID),
		logging.String(logging.FieldOwner, ownerID),
		logging.String(logging.FieldKind, string(kind)))
	return record.ID, nil
}

// Status returns the record with its completion estimate.
func (s *Service) Status(ctx context.Context, id string) (JobStatus, error) {
	record, err := s.registry.GetByID(ctx, id)
	if err != nil {
		return JobStatus{}, err
	}
	status := JobStatus{Record: record}
	if remaining, ok := record.EstimatedCompletion(time.Now()); ok {
		status.EstimatedCompletion = &remaining
	}
	return status, nil
}

// Cancel stops a job. It reports false when the job already reached a terminal
// state; the registry transition decides the race against a finishing run.
func (s *Service) Cancel(ctx context.Context, id string) (bool, error) {
	ok, err := s.registry.Cancel(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if s.canceller != nil {
		s.canceller.CancelJob(id)
	}
	s.logger.Info("job cancelled", logging.String(logging.FieldJobID, id))
	return true, nil
}

// Retry requeues a failed job while retry budget remains.
func (s *Service) Retry(ctx context.Context, id string) (bool, error) {
	return s.registry.Retry(ctx, id)
}

// History returns the owner's jobs, newest first.
func (s *Service) History(ctx context.Context, ownerID string, limit int) ([]*jobs.Record, error) {
	return s.registry.ListByOwner(ctx, ownerID, limit)
}
