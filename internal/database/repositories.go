package database

import (
	"context"
	"time"

	"github.com/benvon/tag-a-log/internal/models"
	"github.com/google/uuid"
)

// TagRepositoryInterface defines the interface for tag repository operations
// This interface enables better testability by allowing mock implementations
type TagRepositoryInterface interface {
	Create(ctx context.Context, ownerID string, input models.TagInput) (*models.Tag, error)
	Get(ctx context.Context, ownerID, tagID string) (*models.Tag, error)
	Update(ctx context.Context, ownerID, tagID string, patch models.TagPatch) error
	Delete(ctx context.Context, ownerID, tagID string) error
	List(ctx context.Context, ownerID string) ([]*models.Tag, error)
	Subscribe(ownerID string, onChange func(tags []*models.Tag, err error)) (func(), error)
}

// LogRepositoryInterface defines the interface for log repository operations
type LogRepositoryInterface interface {
	Create(ctx context.Context, ownerID string, input models.LogInput) (*models.Log, error)
	Get(ctx context.Context, ownerID, logID string) (*models.Log, error)
	Update(ctx context.Context, ownerID, logID string, input models.LogInput) error
	Delete(ctx context.Context, ownerID, logID string) error
	List(ctx context.Context, ownerID string, filter models.LogFilter) ([]*models.Log, error)
	Subscribe(ownerID string, onChange func(logs []*models.Log, err error)) (func(), error)
}

// AccountRepositoryInterface defines the interface for account repository operations
type AccountRepositoryInterface interface {
	Create(ctx context.Context, ownerID, email string) error
	Get(ctx context.Context, ownerID string) (*models.Account, error)
	ScheduleDeletion(ctx context.Context, ownerID string, deadline time.Time) error
	ClearDeletion(ctx context.Context, ownerID string) error
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	DeleteAll(ctx context.Context, ownerID string) error
}

// IdentityRepositoryInterface defines the interface for identity repository operations
type IdentityRepositoryInterface interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetBySubject(ctx context.Context, issuer, subject string) (*models.Identity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ensure concrete types implement the interfaces
var (
	_ TagRepositoryInterface      = (*TagRepository)(nil)
	_ LogRepositoryInterface      = (*LogRepository)(nil)
	_ AccountRepositoryInterface  = (*AccountRepository)(nil)
	_ IdentityRepositoryInterface = (*IdentityRepository)(nil)
)
