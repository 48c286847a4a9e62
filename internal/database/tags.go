package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/metrics"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/validation"
)

// maxCascadeAttempts bounds how often a tag deletion is rebuilt when a log
// it meant to rewrite disappears, or a log starts referencing the tag,
// before the batch commits.
const maxCascadeAttempts = 3

// TagRepository handles tag database operations
type TagRepository struct {
	db DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db DB) *TagRepository {
	return &TagRepository{db: db}
}

func tagFromDocument(ownerID string, d *docstore.Document) *models.Tag {
	return &models.Tag{
		ID:        d.ID,
		OwnerID:   ownerID,
		Name:      stringField(d.Fields, fieldName),
		Color:     stringField(d.Fields, fieldColor),
		CreatedAt: createdAtOf(d),
	}
}

func tagsQuery(collection string) docstore.Query {
	return docstore.NewQuery(collection).OrderBy(fieldCreatedAt, docstore.Desc)
}

// Create validates and stores a new tag
func (r *TagRepository) Create(ctx context.Context, ownerID string, input models.TagInput) (*models.Tag, error) {
	const op = "tags.Create"

	input.Name = validation.NormalizeTagName(input.Name)
	if err := validation.Struct(op, input); err != nil {
		return nil, err
	}
	coll, err := ownerCollection(op, ownerID, tagsCollection)
	if err != nil {
		return nil, err
	}

	doc, err := r.db.Add(ctx, coll, docstore.Fields{
		fieldName:      input.Name,
		fieldColor:     input.Color,
		fieldCreatedAt: docstore.ServerTimestamp,
	})
	if err != nil {
		return nil, writeError(op, "tag", err)
	}
	return tagFromDocument(ownerID, doc), nil
}

// Get retrieves a tag by id
func (r *TagRepository) Get(ctx context.Context, ownerID, tagID string) (*models.Tag, error) {
	const op = "tags.Get"

	path, err := childPath(op, ownerID, tagsCollection, tagID)
	if err != nil {
		return nil, err
	}
	doc, err := r.db.Get(ctx, path)
	if err != nil {
		return nil, readError(op, "tag", err)
	}
	return tagFromDocument(ownerID, doc), nil
}

// Update merges the set fields of patch into the tag
func (r *TagRepository) Update(ctx context.Context, ownerID, tagID string, patch models.TagPatch) error {
	const op = "tags.Update"

	if patch.Name != nil {
		name := validation.NormalizeTagName(*patch.Name)
		patch.Name = &name
	}
	if err := validation.Struct(op, patch); err != nil {
		return err
	}
	path, err := childPath(op, ownerID, tagsCollection, tagID)
	if err != nil {
		return err
	}

	fields := docstore.Fields{}
	if patch.Name != nil {
		fields[fieldName] = *patch.Name
	}
	if patch.Color != nil {
		fields[fieldColor] = *patch.Color
	}
	if err := r.db.Update(ctx, path, fields); err != nil {
		return writeError(op, "tag", err)
	}
	return nil
}

// Delete removes a tag and pulls its id out of every log that references
// it. Both effects commit in one batch: either the tag is gone and no log
// references it, or nothing changed. Log writes touch the tags they
// reference, so a log written after the referencing query moves the tag's
// revision and the batch is rebuilt.
func (r *TagRepository) Delete(ctx context.Context, ownerID, tagID string) error {
	const op = "tags.Delete"

	tagPath, err := childPath(op, ownerID, tagsCollection, tagID)
	if err != nil {
		return err
	}
	logsColl, err := ownerCollection(op, ownerID, logsCollection)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxCascadeAttempts; attempt++ {
		tag, err := r.db.Get(ctx, tagPath)
		if err != nil {
			return readError(op, "tag", err)
		}

		referencing, err := r.db.Query(ctx, docstore.NewQuery(logsColl).Where(fieldTagIDs, docstore.OpArrayContains, tagID))
		if err != nil {
			return apperrors.Write(op, fmt.Errorf("failed to find logs referencing tag: %w", err))
		}

		batch := docstore.NewBatch().Verify(tagPath, tag.Revision).Delete(tagPath)
		for _, d := range referencing {
			batch.Update(d.Path, docstore.Fields{
				fieldTagIDs: models.WithoutTag(stringsField(d.Fields, fieldTagIDs), tagID),
			})
		}

		lastErr = r.db.Commit(ctx, batch)
		if lastErr == nil {
			metrics.TagCascadeLogs.Observe(float64(len(referencing)))
			return nil
		}
		// the tag or its referencing logs changed after the query; rebuild
		if !errors.Is(lastErr, docstore.ErrNotFound) && !errors.Is(lastErr, docstore.ErrStale) {
			break
		}
	}
	return apperrors.Write(op, lastErr)
}

// List returns the owner's tags, newest first
func (r *TagRepository) List(ctx context.Context, ownerID string) ([]*models.Tag, error) {
	const op = "tags.List"

	coll, err := ownerCollection(op, ownerID, tagsCollection)
	if err != nil {
		return nil, err
	}
	docs, err := r.db.Query(ctx, tagsQuery(coll))
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	tags := make([]*models.Tag, len(docs))
	for i, d := range docs {
		tags[i] = tagFromDocument(ownerID, d)
	}
	return tags, nil
}

// Subscribe delivers the owner's full tag set, newest first, now and after
// every change. The returned function stops delivery and may be called
// any number of times.
func (r *TagRepository) Subscribe(ownerID string, onChange func(tags []*models.Tag, err error)) (func(), error) {
	const op = "tags.Subscribe"

	coll, err := ownerCollection(op, ownerID, tagsCollection)
	if err != nil {
		return nil, err
	}
	sub, err := r.db.Subscribe(tagsQuery(coll), func(docs []*docstore.Document, err error) {
		if err != nil {
			onChange(nil, apperrors.Internal(op, err))
			return
		}
		tags := make([]*models.Tag, len(docs))
		for i, d := range docs {
			tags[i] = tagFromDocument(ownerID, d)
		}
		onChange(tags, nil)
	})
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return sub.Stop, nil
}
