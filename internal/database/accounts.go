package database

import (
	"context"
	"errors"
	"time"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
)

// AccountRepository handles the account fields of users/{uid}
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// accountState decodes the lifecycle fields. Both fields present means
// scheduled; anything else is active.
func accountState(f docstore.Fields) models.AccountState {
	if models.AccountStatus(stringField(f, fieldAccountStatus)) != models.AccountStatusScheduledForDeletion {
		return models.Active{}
	}
	deadline := timeField(f, fieldScheduledDeletionDate)
	if deadline == nil {
		return models.Active{}
	}
	return models.ScheduledForDeletion{Deadline: *deadline}
}

func accountFromDocument(ownerID string, d *docstore.Document) *models.Account {
	return &models.Account{
		OwnerID:   ownerID,
		Email:     stringField(d.Fields, fieldEmail),
		State:     accountState(d.Fields),
		CreatedAt: timeField(d.Fields, fieldCreatedAt),
	}
}

// Create writes the profile document of a new user. An existing profile is
// left untouched.
func (r *AccountRepository) Create(ctx context.Context, ownerID, email string) error {
	const op = "accounts.Create"

	path, err := userPath(op, ownerID)
	if err != nil {
		return err
	}
	err = r.db.Create(ctx, path, docstore.Fields{
		fieldEmail:     email,
		fieldCreatedAt: docstore.ServerTimestamp,
	})
	if err != nil && !errors.Is(err, docstore.ErrAlreadyExists) {
		return apperrors.Write(op, err)
	}
	return nil
}

// Get returns the account of ownerID. A missing profile document reads as
// an active account.
func (r *AccountRepository) Get(ctx context.Context, ownerID string) (*models.Account, error) {
	const op = "accounts.Get"

	path, err := userPath(op, ownerID)
	if err != nil {
		return nil, err
	}
	doc, err := r.db.Get(ctx, path)
	if errors.Is(err, docstore.ErrNotFound) {
		return &models.Account{OwnerID: ownerID, State: models.Active{}}, nil
	}
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return accountFromDocument(ownerID, doc), nil
}

// ScheduleDeletion sets the status and deadline in one write, creating the
// profile document if needed.
func (r *AccountRepository) ScheduleDeletion(ctx context.Context, ownerID string, deadline time.Time) error {
	const op = "accounts.ScheduleDeletion"

	path, err := userPath(op, ownerID)
	if err != nil {
		return err
	}
	err = r.db.SetMerge(ctx, path, docstore.Fields{
		fieldAccountStatus:         string(models.AccountStatusScheduledForDeletion),
		fieldScheduledDeletionDate: deadline.UTC(),
		fieldUpdatedAt:             docstore.ServerTimestamp,
	})
	if err != nil {
		return apperrors.Write(op, err)
	}
	return nil
}

// ClearDeletion removes both lifecycle fields in one write
func (r *AccountRepository) ClearDeletion(ctx context.Context, ownerID string) error {
	const op = "accounts.ClearDeletion"

	path, err := userPath(op, ownerID)
	if err != nil {
		return err
	}
	err = r.db.Update(ctx, path, docstore.Fields{
		fieldAccountStatus:         docstore.DeleteField,
		fieldScheduledDeletionDate: docstore.DeleteField,
		fieldUpdatedAt:             docstore.ServerTimestamp,
	})
	if err != nil {
		return writeError(op, "account", err)
	}
	return nil
}

// ListExpired returns the owner ids of accounts scheduled for deletion with
// a deadline at or before now
func (r *AccountRepository) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "accounts.ListExpired"

	q := docstore.NewQuery(usersCollection).
		Where(fieldAccountStatus, docstore.OpEqual, string(models.AccountStatusScheduledForDeletion)).
		Where(fieldScheduledDeletionDate, docstore.OpLessOrEqual, now.UTC()).
		OrderBy(fieldScheduledDeletionDate, docstore.Asc)
	docs, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// DeleteAll removes the profile document and every tag and log of ownerID
func (r *AccountRepository) DeleteAll(ctx context.Context, ownerID string) error {
	const op = "accounts.DeleteAll"

	path, err := userPath(op, ownerID)
	if err != nil {
		return err
	}
	if err := r.db.RecursiveDelete(ctx, path); err != nil {
		return apperrors.Write(op, err)
	}
	return nil
}
