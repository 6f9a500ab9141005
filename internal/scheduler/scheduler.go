// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds one reconcile run.
const DefaultJobTimeout = time.Minute

// Reconciler clears lapsed subscriptions.
type Reconciler interface {
	ReconcileExpired(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner for the subscription sweep.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	logger     *slog.Logger
	jobTimeout time.Duration
}

// New creates a Scheduler. Jobs recover from panics and a run is skipped
// while the previous one is still in progress.
func New(reconciler Reconciler, logger *slog.Logger) *Scheduler {
	logger = logger.With("component", "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		logger:     logger,
		jobTimeout: DefaultJobTimeout,
	}
}

// Start registers the reconcile job on schedule and starts the runner.
// An empty schedule disables the job. An invalid one is an error.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		s.logger.Info("reconcile job disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, s.RunReconcile); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	s.logger.Info("scheduled reconcile job", "schedule", schedule)

	s.cron.Start()
	return nil
}

// RunReconcile performs one sweep.
func (s *Scheduler) RunReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.reconciler.ReconcileExpired(ctx)
	if err != nil {
		s.logger.Error("reconcile job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	s.logger.Debug("reconcile job finished", "expired", n, "duration_ms", time.Since(start).Milliseconds())
}

// Stop halts the runner and waits for a running job or ctx, whichever
// finishes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
