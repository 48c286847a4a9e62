package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/database"
	"go.uber.org/zap"
)

// IdentityDeleter deletes the identity behind an owner id
type IdentityDeleter interface {
	DeleteIdentity(ctx context.Context, ownerID string) error
}

// Eraser permanently removes an account: its documents, then its identity
type Eraser struct {
	accounts   database.AccountRepositoryInterface
	identities IdentityDeleter
	logger     *zap.Logger
}

// NewEraser creates an account eraser
func NewEraser(accounts database.AccountRepositoryInterface, identities IdentityDeleter, logger *zap.Logger) *Eraser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Eraser{accounts: accounts, identities: identities, logger: logger}
}

// Erase deletes every document of ownerID and then its identity. An
// identity that is already gone counts as deleted.
func (e *Eraser) Erase(ctx context.Context, ownerID string) error {
	if err := e.accounts.DeleteAll(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to delete account documents: %w", err)
	}
	if err := e.identities.DeleteIdentity(ctx, ownerID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	e.logger.Info("account_erased", zap.String("owner_id", ownerID))
	return nil
}
