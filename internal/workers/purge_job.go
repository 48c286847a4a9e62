package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/metrics"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/queue"
	"go.uber.org/zap"
)

// PurgeJobProcessor consumes account_purge jobs
type PurgeJobProcessor struct {
	accounts database.AccountRepositoryInterface
	eraser   Eraser
	logger   *zap.Logger
	now      func() time.Time
}

// NewPurgeJobProcessor creates a purge job processor
func NewPurgeJobProcessor(accounts database.AccountRepositoryInterface, eraser Eraser, logger *zap.Logger) *PurgeJobProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurgeJobProcessor{accounts: accounts, eraser: eraser, logger: logger, now: time.Now}
}

// ProcessJob erases the account named by the job if it is still expired.
// Failed jobs are dead-lettered.
func (p *PurgeJobProcessor) ProcessJob(ctx context.Context, msg queue.Receipt) error {
	job := msg.Job()

	if job.Type != queue.JobTypeAccountPurge {
		p.deadLetter(msg, job)
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	account, err := p.accounts.Get(ctx, job.OwnerID)
	if err != nil {
		return p.fail(msg, job, fmt.Errorf("failed to read account: %w", err))
	}

	// reactivated or re-armed since the sweep
	if !models.IsExpired(account.State, p.now()) {
		metrics.PurgeAccountsTotal.WithLabelValues(metrics.PurgeOutcomeSkipped).Inc()
		p.logger.Info("purge_account_skipped",
			zap.String("owner_id", job.OwnerID),
			zap.String("status", string(account.State.Status())),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil
	}

	if err := p.eraser.Erase(ctx, job.OwnerID); err != nil {
		return p.fail(msg, job, err)
	}

	metrics.PurgeAccountsTotal.WithLabelValues(metrics.PurgeOutcomeErased).Inc()
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

func (p *PurgeJobProcessor) fail(msg queue.Receipt, job *queue.Job, err error) error {
	metrics.PurgeAccountsTotal.WithLabelValues(metrics.PurgeOutcomeFailed).Inc()
	p.logger.Error("purge_account_failed",
		zap.String("owner_id", job.OwnerID),
		zap.String("job_id", job.ID.String()),
		zap.Error(err),
	)
	p.deadLetter(msg, job)
	return err
}

func (p *PurgeJobProcessor) deadLetter(msg queue.Receipt, job *queue.Job) {
	if err := msg.DeadLetter(); err != nil {
		p.logger.Warn("job_dead_letter_failed", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}
