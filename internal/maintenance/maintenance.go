// Package maintenance runs periodic housekeeping against the history
// database: compaction plus a row-count report for operators.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// Target is the subset of the history store maintenance operates on.
type Target interface {
	Vacuum(ctx context.Context) error
	Counts(ctx context.Context) (requests, results int64, err error)
}

// Scheduler wraps gocron for the periodic maintenance job.
type Scheduler struct {
	scheduler gocron.Scheduler
	target    Target
	logger    *slog.Logger
}

// NewScheduler creates a maintenance scheduler over the given store.
func NewScheduler(target Target, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, target: target, logger: logger}, nil
}

// Start schedules the maintenance job at the given interval and begins
// the scheduler.
func (s *Scheduler) Start(interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
		gocron.WithName("history-maintenance"),
	)
	if err != nil {
		return fmt.Errorf("failed to create maintenance job: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("maintenance scheduler started", slog.Duration("interval", interval))
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping maintenance scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs one maintenance pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	if err := s.target.Vacuum(ctx); err != nil {
		s.logger.Error("history vacuum failed", logfields.Error(err))
		return
	}

	requests, results, err := s.target.Counts(ctx)
	if err != nil {
		s.logger.Error("history count failed", logfields.Error(err))
		return
	}

	s.logger.Info("history maintenance finished",
		slog.Int64("requests", requests),
		slog.Int64("results", results),
		logfields.DurationMS(float64(time.Since(start).Milliseconds())))
}
