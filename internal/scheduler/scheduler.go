package scheduler

import (
	"context"
	"log/slog"
	"time"

	"apod_pipeline/internal/domain"
)

// Runner defines the interface for one pipeline run.
type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

// Scheduler triggers a pipeline run immediately and then on a fixed
// interval. Task-level retry lives here, not in the fetcher: a run that
// failed on a transient fetch error is retried after a fixed delay.
type Scheduler struct {
	runner      Runner
	interval    time.Duration
	runTimeout  time.Duration
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

type Config struct {
	Interval    time.Duration
	RunTimeout  time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

func NewScheduler(runner Runner, cfg Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:      runner,
		interval:    cfg.Interval,
		runTimeout:  cfg.RunTimeout,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runPipeline(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runPipeline(ctx)
		}
	}
}

func (s *Scheduler) runPipeline(ctx context.Context) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
		_, err := s.runner.Run(runCtx)
		cancel()

		if err == nil {
			return
		}

		if !domain.IsTransientFetch(err) || attempt == s.maxAttempts {
			s.logger.Error("pipeline run failed", "attempt", attempt, "error", err)
			return
		}

		s.logger.Warn("pipeline run failed, retrying",
			"attempt", attempt,
			"retry_delay", s.retryDelay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}
