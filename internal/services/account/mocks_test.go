package account

import (
	"context"
	"time"

	"github.com/benvon/tag-a-log/internal/models"
)

type mockAccountRepository struct {
	CreateFunc           func(ctx context.Context, ownerID, email string) error
	GetFunc              func(ctx context.Context, ownerID string) (*models.Account, error)
	ScheduleDeletionFunc func(ctx context.Context, ownerID string, deadline time.Time) error
	ClearDeletionFunc    func(ctx context.Context, ownerID string) error
	ListExpiredFunc      func(ctx context.Context, now time.Time) ([]string, error)
	DeleteAllFunc        func(ctx context.Context, ownerID string) error
}

func (m *mockAccountRepository) Create(ctx context.Context, ownerID, email string) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ownerID, email)
	}
	return nil
}

func (m *mockAccountRepository) Get(ctx context.Context, ownerID string) (*models.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, ownerID)
	}
	return &models.Account{OwnerID: ownerID, State: models.Active{}}, nil
}

func (m *mockAccountRepository) ScheduleDeletion(ctx context.Context, ownerID string, deadline time.Time) error {
	if m.ScheduleDeletionFunc != nil {
		return m.ScheduleDeletionFunc(ctx, ownerID, deadline)
	}
	return nil
}

func (m *mockAccountRepository) ClearDeletion(ctx context.Context, ownerID string) error {
	if m.ClearDeletionFunc != nil {
		return m.ClearDeletionFunc(ctx, ownerID)
	}
	return nil
}

func (m *mockAccountRepository) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	if m.ListExpiredFunc != nil {
		return m.ListExpiredFunc(ctx, now)
	}
	return nil, nil
}

func (m *mockAccountRepository) DeleteAll(ctx context.Context, ownerID string) error {
	if m.DeleteAllFunc != nil {
		return m.DeleteAllFunc(ctx, ownerID)
	}
	return nil
}

type mockIdentityDeleter struct {
	DeleteIdentityFunc func(ctx context.Context, ownerID string) error
	calls              []string
}

func (m *mockIdentityDeleter) DeleteIdentity(ctx context.Context, ownerID string) error {
	m.calls = append(m.calls, ownerID)
	if m.DeleteIdentityFunc != nil {
		return m.DeleteIdentityFunc(ctx, ownerID)
	}
	return nil
}
