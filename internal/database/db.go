package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/docstore"
)

const (
	usersCollection = "users"
	tagsCollection  = "tags"
	logsCollection  = "logs"
)

// Stored field names
const (
	fieldCreatedAt             = "createdAt"
	fieldUpdatedAt             = "updatedAt"
	fieldEmail                 = "email"
	fieldName                  = "name"
	fieldColor                 = "color"
	fieldTitle                 = "title"
	fieldContent               = "content"
	fieldTagIDs                = "tagIds"
	fieldAccountStatus         = "accountStatus"
	fieldScheduledDeletionDate = "scheduledDeletionDate"
)

// DB is the document store the repositories read and write.
// *docstore.Store implements it.
type DB interface {
	Get(ctx context.Context, path string) (*docstore.Document, error)
	Add(ctx context.Context, collection string, fields docstore.Fields) (*docstore.Document, error)
	Create(ctx context.Context, path string, fields docstore.Fields) error
	SetMerge(ctx context.Context, path string, fields docstore.Fields) error
	Update(ctx context.Context, path string, fields docstore.Fields) error
	Delete(ctx context.Context, path string) error
	Commit(ctx context.Context, b *docstore.Batch) error
	Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error)
	Subscribe(q docstore.Query, fn docstore.SnapshotFunc) (*docstore.Subscription, error)
	RecursiveDelete(ctx context.Context, path string) error
}

var _ DB = (*docstore.Store)(nil)

// userPath returns users/{ownerID}, rejecting ids that would escape the
// owner's subtree.
func userPath(op, ownerID string) (string, error) {
	if ownerID == "" || strings.ContainsAny(ownerID, "/\x00") {
		return "", apperrors.Validation(op, "invalid owner id")
	}
	return docstore.Doc(usersCollection, ownerID), nil
}

func ownerCollection(op, ownerID, name string) (string, error) {
	user, err := userPath(op, ownerID)
	if err != nil {
		return "", err
	}
	return docstore.Collection(user, name), nil
}

func childPath(op, ownerID, name, id string) (string, error) {
	coll, err := ownerCollection(op, ownerID, name)
	if err != nil {
		return "", err
	}
	if id == "" || strings.ContainsAny(id, "/\x00") {
		return "", apperrors.NotFound(op, "document not found")
	}
	return docstore.Doc(coll, id), nil
}

// readError maps a failed store read to the application taxonomy
func readError(op, what string, err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return apperrors.NotFound(op, what+" not found")
	case errors.Is(err, docstore.ErrInvalidPath):
		return apperrors.Validation(op, "invalid path")
	default:
		return apperrors.Internal(op, err)
	}
}

// writeError maps a failed store write to the application taxonomy
func writeError(op, what string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return apperrors.NotFound(op, what+" not found")
	}
	return apperrors.Write(op, err)
}

func timeField(f docstore.Fields, name string) *time.Time {
	s, ok := f[name].(string)
	if !ok {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func stringField(f docstore.Fields, name string) string {
	s, _ := f[name].(string)
	return s
}

func stringsField(f docstore.Fields, name string) []string {
	raw, _ := f[name].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func createdAtOf(d *docstore.Document) time.Time {
	if t := timeField(d.Fields, fieldCreatedAt); t != nil {
		return *t
	}
	return d.CreateTime
}
