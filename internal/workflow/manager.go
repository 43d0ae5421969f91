package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"framelift/internal/config"
	"framelift/internal/generation"
	"framelift/internal/jobs"
	"framelift/internal/logging"
	"framelift/internal/pipeline"
	"framelift/internal/segmentation"
)

// Manager coordinates job processing across a bounded worker pool.
type Manager struct {
	cfg      *config.Config
	registry *jobs.Registry
	logger   *slog.Logger
	runners  map[jobs.Kind]JobRunner

	workers            int
	pollInterval       time.Duration
	errorRetryInterval time.Duration
	sweepInterval      time.Duration
	retention          time.Duration
	retryDelay         time.Duration
	autoRetry          bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[string]context.CancelFunc
}

// NewManager constructs a manager with runners wired from configuration. Kinds
// whose endpoints are not configured are left unregistered; submitting them
// fails the job with a configuration error instead of crashing the daemon.
func NewManager(cfg *config.Config, registry *jobs.Registry, logger *slog.Logger) (*Manager, error) {
	runners := make(map[jobs.Kind]JobRunner)

	if cfg.Segmentation.Endpoint != "" {
		processor, err := segmentation.NewHTTPProcessor(cfg.Segmentation.Endpoint,
			segmentation.WithModel(cfg.Segmentation.Model),
			segmentation.WithTimeout(time.Duration(cfg.Segmentation.FrameTimeout)*time.Second))
		if err != nil {
			return nil, err
		}
		runners[jobs.KindBackground] = PipelineRunner{
			Runner: pipeline.NewRunner(cfg, processor, pipeline.WithLogger(logger)),
		}
	}
	if cfg.Segmentation.QualityEndpoint != "" {
		processor, err := segmentation.NewHTTPProcessor(cfg.Segmentation.QualityEndpoint,
			segmentation.WithTimeout(time.Duration(cfg.Segmentation.FrameTimeout)*time.Second))
		if err != nil {
			return nil, err
		}
		runners[jobs.KindQuality] = PipelineRunner{
			Runner: pipeline.NewRunner(cfg, processor, pipeline.WithLogger(logger)),
		}
	}
	if cfg.Generation.Endpoint != "" {
		client, err := generation.NewHTTPClient(cfg.Generation.Endpoint,
			generation.WithPollInterval(time.Duration(cfg.Generation.PollInterval)*time.Second),
			generation.WithTimeout(time.Duration(cfg.Generation.Timeout)*time.Second))
		if err != nil {
			return nil, err
		}
		runners[jobs.KindGeneration] = GenerationRunner{Client: client}
	}

	return NewManagerWithRunners(cfg, registry, logger, runners), nil
}

// NewManagerWithRunners constructs a manager with explicit runners (used in tests).
func NewManagerWithRunners(cfg *config.Config, registry *jobs.Registry, logger *slog.Logger, runners map[jobs.Kind]JobRunner) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:                cfg,
		registry:           registry,
		logger:             logging.NewComponentLogger(logger, "workflow"),
		runners:            runners,
		workers:            cfg.Workflow.Workers,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		sweepInterval:      time.Duration(cfg.Workflow.SweepInterval) * time.Second,
		retention:          time.Duration(cfg.Jobs.RetentionHours) * time.Hour,
		retryDelay:         time.Duration(cfg.Jobs.RetryDelay) * time.Second,
		autoRetry:          cfg.Jobs.AutoRetry,
		active:             make(map[string]context.CancelFunc),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.runners) == 0 {
		m.mu.Unlock()
		return errors.New("no job runners configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.mu.Unlock()

	reset, err := m.registry.ResetStuckProcessing(runCtx)
	if err != nil {
		m.logger.Warn("reset stuck processing failed", logging.Error(err))
	} else if reset > 0 {
		m.logger.Info("reset stuck processing jobs", logging.Int64("count", reset))
	}

	workers := m.workers
	if workers <= 0 {
		workers = 1
	}
	m.wg.Add(workers + 1)
	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	go m.runSweeper(runCtx)

	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// CancelJob interrupts an in-flight run. It reports whether the job was
// actively processing on this manager.
func (m *Manager) CancelJob(id string) bool {
	m.mu.Lock()
	cancel, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (m *Manager) trackJob(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.active[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) untrackJob(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}
