// Package account implements the deferred account deletion lifecycle
package account

import (
	"context"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/models"
	"go.uber.org/zap"
)

// Manager moves accounts between Active and ScheduledForDeletion
type Manager struct {
	accounts database.AccountRepositoryInterface
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a lifecycle manager
func NewManager(accounts database.AccountRepositoryInterface, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{accounts: accounts, logger: logger, now: time.Now}
}

// WithClock replaces the manager's time source
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// ScheduleDeletion arms (or re-arms) deletion for now plus the grace period
func (m *Manager) ScheduleDeletion(ctx context.Context, ownerID string) (models.AccountStatusView, error) {
	now := m.now()
	deadline := now.Add(models.DeletionGracePeriod).UTC()
	if err := m.accounts.ScheduleDeletion(ctx, ownerID, deadline); err != nil {
		return models.AccountStatusView{}, err
	}
	m.logger.Info("account_deletion_scheduled",
		zap.String("owner_id", ownerID),
		zap.Time("deadline", deadline),
	)
	return models.NewAccountStatusView(models.ScheduledForDeletion{Deadline: deadline}, now), nil
}

// CancelDeletion reactivates a scheduled account. It does nothing for an
// account that is already active.
func (m *Manager) CancelDeletion(ctx context.Context, ownerID string) error {
	account, err := m.accounts.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	if _, ok := account.State.(models.ScheduledForDeletion); !ok {
		return nil
	}
	if err := m.accounts.ClearDeletion(ctx, ownerID); err != nil {
		return err
	}
	m.logger.Info("account_deletion_cancelled", zap.String("owner_id", ownerID))
	return nil
}

// GetStatus returns the lifecycle projection of ownerID's account
func (m *Manager) GetStatus(ctx context.Context, ownerID string) (models.AccountStatusView, error) {
	account, err := m.accounts.Get(ctx, ownerID)
	if err != nil {
		return models.AccountStatusView{}, err
	}
	return models.NewAccountStatusView(account.State, m.now()), nil
}
