package database

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/google/uuid"
)

const (
	identitiesCollection      = "identities"
	identityEmailsCollection  = "identity_emails"
	identitySubjectCollection = "identity_subjects"

	fieldIdentityID   = "identityId"
	fieldProvider     = "provider"
	fieldSubject      = "subject"
	fieldIssuer       = "issuer"
	fieldPasswordHash = "passwordHash"
	fieldDisplayName  = "displayName"
)

// ErrIdentityExists is returned when an email or federated subject is
// already bound to an identity
var ErrIdentityExists = errors.New("identity already exists")

// IdentityRepository stores identities and their lookup indexes
type IdentityRepository struct {
	db DB
}

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailIndexPath(email string) string {
	return docstore.Doc(identityEmailsCollection, url.PathEscape(NormalizeEmail(email)))
}

func subjectIndexPath(issuer, subject string) string {
	return docstore.Doc(identitySubjectCollection, url.PathEscape(issuer+"|"+subject))
}

func identityFromDocument(d *docstore.Document) (*models.Identity, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	identity := &models.Identity{
		ID:           id,
		Email:        stringField(d.Fields, fieldEmail),
		Provider:     models.IdentityProvider(stringField(d.Fields, fieldProvider)),
		Subject:      stringField(d.Fields, fieldSubject),
		Issuer:       stringField(d.Fields, fieldIssuer),
		PasswordHash: stringField(d.Fields, fieldPasswordHash),
		CreatedAt:    createdAtOf(d),
	}
	if name := stringField(d.Fields, fieldDisplayName); name != "" {
		identity.Name = &name
	}
	return identity, nil
}

// Create stores identity and claims its email (and federated subject) in
// one batch. ErrIdentityExists is returned if either is taken.
func (r *IdentityRepository) Create(ctx context.Context, identity *models.Identity) error {
	const op = "identities.Create"

	identity.Email = NormalizeEmail(identity.Email)
	path := docstore.Doc(identitiesCollection, identity.ID.String())
	fields := docstore.Fields{
		fieldEmail:     identity.Email,
		fieldProvider:  string(identity.Provider),
		fieldCreatedAt: docstore.ServerTimestamp,
	}
	if identity.PasswordHash != "" {
		fields[fieldPasswordHash] = identity.PasswordHash
	}
	if identity.Subject != "" {
		fields[fieldSubject] = identity.Subject
		fields[fieldIssuer] = identity.Issuer
	}
	if identity.Name != nil {
		fields[fieldDisplayName] = *identity.Name
	}

	batch := docstore.NewBatch().Create(path, fields)
	if identity.Email != "" {
		batch.Create(emailIndexPath(identity.Email), docstore.Fields{fieldIdentityID: identity.ID.String()})
	}
	if identity.Subject != "" {
		batch.Create(subjectIndexPath(identity.Issuer, identity.Subject), docstore.Fields{fieldIdentityID: identity.ID.String()})
	}

	err := r.db.Commit(ctx, batch)
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return ErrIdentityExists
	}
	if err != nil {
		return apperrors.Write(op, err)
	}
	return nil
}

// GetByID retrieves an identity by id
func (r *IdentityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Identity, error) {
	const op = "identities.GetByID"

	doc, err := r.db.Get(ctx, docstore.Doc(identitiesCollection, id.String()))
	if err != nil {
		return nil, readError(op, "identity", err)
	}
	identity, err := identityFromDocument(doc)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return identity, nil
}

func (r *IdentityRepository) resolve(ctx context.Context, op, indexPath string) (*models.Identity, error) {
	doc, err := r.db.Get(ctx, indexPath)
	if err != nil {
		return nil, readError(op, "identity", err)
	}
	id, err := uuid.Parse(stringField(doc.Fields, fieldIdentityID))
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return r.GetByID(ctx, id)
}

// GetByEmail retrieves an identity by email address
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.resolve(ctx, "identities.GetByEmail", emailIndexPath(email))
}

// GetBySubject retrieves a federated identity by issuer and subject
func (r *IdentityRepository) GetBySubject(ctx context.Context, issuer, subject string) (*models.Identity, error) {
	return r.resolve(ctx, "identities.GetBySubject", subjectIndexPath(issuer, subject))
}

// Delete removes an identity and its indexes
func (r *IdentityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "identities.Delete"

	identity, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	batch := docstore.NewBatch().Delete(docstore.Doc(identitiesCollection, id.String()))
	if identity.Email != "" {
		batch.Delete(emailIndexPath(identity.Email))
	}
	if identity.Subject != "" {
		batch.Delete(subjectIndexPath(identity.Issuer, identity.Subject))
	}
	if err := r.db.Commit(ctx, batch); err != nil {
		return apperrors.Write(op, err)
	}
	return nil
}
