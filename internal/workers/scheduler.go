package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs the purge sweep on a fixed interval
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a scheduler
func NewScheduler(sweeper *Sweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{sweeper: sweeper, interval: interval, logger: logger}
}

// Start sweeps once immediately and then every interval until ctx is
// cancelled. Sweeps never overlap.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("purge_scheduler_started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("purge_scheduler_stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	// errors are logged by the sweeper; the next tick tries again
	_, _ = s.sweeper.RunOnce(ctx)
}
