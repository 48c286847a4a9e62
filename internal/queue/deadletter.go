package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tag-a-log/internal/metrics"
	"go.uber.org/zap"
)

const pruneTimeout = 2 * time.Minute

// DeadLetterCollector periodically discards purge jobs that have sat in the
// DLQ longer than the retention period. Accounts that are still expired are
// re-dispatched by the next sweep.
type DeadLetterCollector struct {
	pruner    DeadLetterPruner
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewDeadLetterCollector creates a collector; pruner may be nil
func NewDeadLetterCollector(pruner DeadLetterPruner, interval, retention time.Duration, logger *zap.Logger) *DeadLetterCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadLetterCollector{
		pruner:    pruner,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Run prunes once immediately and then every interval until ctx is done
func (c *DeadLetterCollector) Run(ctx context.Context) error {
	if c.interval <= 0 {
		return fmt.Errorf("dead letter collection interval must be positive, got %s", c.interval)
	}
	c.collectAndLog(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.collectAndLog(ctx)
		}
	}
}

func (c *DeadLetterCollector) collectAndLog(ctx context.Context) {
	if _, err := c.collect(ctx); err != nil && ctx.Err() == nil {
		c.logger.Error("dead_letter_prune_failed", zap.Error(err))
	}
}

// collect returns the number of jobs discarded
func (c *DeadLetterCollector) collect(ctx context.Context) (int, error) {
	if c.pruner == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	n, err := c.pruner.PruneDeadLetters(ctx, c.retention)
	if n > 0 {
		metrics.DeadLettersDiscardedTotal.Add(float64(n))
		c.logger.Info("dead_letters_discarded",
			zap.Int("count", n),
			zap.Duration("retention", c.retention),
		)
	}
	if err != nil {
		return n, fmt.Errorf("prune dead letters: %w", err)
	}
	return n, nil
}
