package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/accstats/accstats/services"
)

var (
	ErrAlreadyRunning  = errors.New("scheduler is already running")
	ErrNotRunning      = errors.New("scheduler is not running")
	ErrInvalidInterval = errors.New("scheduler interval must be positive")
)

// Status is the snapshot served by the status endpoint.
type Status struct {
	Running   bool                     `json:"running"`
	Interval  string                   `json:"interval,omitempty"`
	StartedAt *time.Time               `json:"started_at,omitempty"`
	LastRunAt *time.Time               `json:"last_run_at,omitempty"`
	LastError string                   `json:"last_error,omitempty"`
	LastRun   *services.PipelineReport `json:"last_run,omitempty"`
}

// Scheduler drives the ingest pipeline on a fixed interval. Start runs the
// pipeline immediately, then on every tick until Stop cancels the loop's
// context. Overlap with manual API triggers is handled inside the pipeline
// itself.
type Scheduler struct {
	pipeline services.PipelineService
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	interval  time.Duration
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	lastRunAt time.Time
	lastRun   *services.PipelineReport
	lastErr   string
}

func New(pipeline services.PipelineService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		logger:   logger,
	}
}

func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.interval = interval
	s.startedAt = time.Now()
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, interval, s.done)

	s.logger.Info("scheduler started", slog.Duration("interval", interval))
	return nil
}

// Stop cancels the loop and waits for it to drain.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:   s.running,
		LastError: s.lastErr,
		LastRun:   s.lastRun,
	}
	if s.running {
		status.Interval = s.interval.String()
		startedAt := s.startedAt
		status.StartedAt = &startedAt
	}
	if !s.lastRunAt.IsZero() {
		lastRunAt := s.lastRunAt
		status.LastRunAt = &lastRunAt
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	report, err := s.pipeline.Run(ctx)

	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.lastRun = report
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduled pipeline run failed", slog.Any("error", err))
	}
}
