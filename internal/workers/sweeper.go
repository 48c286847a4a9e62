package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/metrics"
	"github.com/benvon/tag-a-log/internal/queue"
	"github.com/benvon/tag-a-log/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Eraser permanently removes an account
type Eraser interface {
	Erase(ctx context.Context, ownerID string) error
}

// Dispatcher hands one expired account to whatever erases it
type Dispatcher interface {
	Dispatch(ctx context.Context, ownerID string) error
	// Outcome is the metrics outcome recorded for a successful dispatch
	Outcome() string
}

// InlineDispatcher erases accounts within the sweep
type InlineDispatcher struct {
	eraser Eraser
}

// NewInlineDispatcher creates a dispatcher that erases directly
func NewInlineDispatcher(eraser Eraser) *InlineDispatcher {
	return &InlineDispatcher{eraser: eraser}
}

// Dispatch implements Dispatcher
func (d *InlineDispatcher) Dispatch(ctx context.Context, ownerID string) error {
	return d.eraser.Erase(ctx, ownerID)
}

// Outcome implements Dispatcher
func (d *InlineDispatcher) Outcome() string { return metrics.PurgeOutcomeErased }

// QueueDispatcher enqueues one account_purge job per account. Jobs expire
// after ttl so the next sweep reconsiders accounts whose job never ran.
type QueueDispatcher struct {
	jobQueue queue.JobQueue
	ttl      time.Duration
	now      func() time.Time
}

// NewQueueDispatcher creates a dispatcher backed by jobQueue
func NewQueueDispatcher(jobQueue queue.JobQueue, ttl time.Duration) *QueueDispatcher {
	return &QueueDispatcher{jobQueue: jobQueue, ttl: ttl, now: time.Now}
}

// Dispatch implements Dispatcher
func (d *QueueDispatcher) Dispatch(ctx context.Context, ownerID string) error {
	job := queue.NewPurgeJob(ownerID, d.now().Add(d.ttl))
	if err := d.jobQueue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue purge job: %w", err)
	}
	return nil
}

// Outcome implements Dispatcher
func (d *QueueDispatcher) Outcome() string { return metrics.PurgeOutcomeEnqueued }

// SweepResult summarises one sweep
type SweepResult struct {
	Candidates int
	Dispatched int
	Failed     int
}

// Sweeper finds accounts past their deletion deadline and dispatches each
// one independently
type Sweeper struct {
	accounts   database.AccountRepositoryInterface
	dispatcher Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewSweeper creates a purge sweeper
func NewSweeper(accounts database.AccountRepositoryInterface, dispatcher Dispatcher, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{accounts: accounts, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// Candidates returns the owner ids an immediate sweep would process
func (s *Sweeper) Candidates(ctx context.Context) ([]string, error) {
	ids, err := s.accounts.ListExpired(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list expired accounts: %w", err)
	}
	return ids, nil
}

// RunOnce performs one sweep. A failure for one account is logged and
// counted and never stops the others; there is no retry within a run. An
// error is returned only when the candidates cannot be listed.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "purge.sweep")
	defer func() {
		span.End()
		metrics.PurgeSweepDuration.Observe(time.Since(start).Seconds())
	}()

	ids, err := s.Candidates(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing candidates failed")
		s.logger.Error("purge_sweep_failed", zap.Error(err))
		return SweepResult{}, err
	}

	result := SweepResult{Candidates: len(ids)}
	defer func() {
		span.SetAttributes(
			attribute.Int("purge.candidates", result.Candidates),
			attribute.Int("purge.dispatched", result.Dispatched),
			attribute.Int("purge.failed", result.Failed),
		)
	}()
	for _, ownerID := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("purge_sweep_interrupted",
				zap.Int("remaining", len(ids)-result.Dispatched-result.Failed),
				zap.Error(err),
			)
			return result, nil
		}
		if err := s.dispatcher.Dispatch(ctx, ownerID); err != nil {
			result.Failed++
			metrics.PurgeAccountsTotal.WithLabelValues(metrics.PurgeOutcomeFailed).Inc()
			s.logger.Error("purge_account_failed",
				zap.String("owner_id", ownerID),
				zap.Error(err),
			)
			continue
		}
		result.Dispatched++
		metrics.PurgeAccountsTotal.WithLabelValues(s.dispatcher.Outcome()).Inc()
	}

	s.logger.Info("purge_sweep_completed",
		zap.Int("candidates", result.Candidates),
		zap.Int("dispatched", result.Dispatched),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
