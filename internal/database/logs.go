package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/validation"
)

// LogRepository handles log database operations
type LogRepository struct {
	db DB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db DB) *LogRepository {
	return &LogRepository{db: db}
}

func logFromDocument(ownerID string, d *docstore.Document) *models.Log {
	return &models.Log{
		ID:        d.ID,
		OwnerID:   ownerID,
		Title:     stringField(d.Fields, fieldTitle),
		Content:   stringField(d.Fields, fieldContent),
		TagIDs:    stringsField(d.Fields, fieldTagIDs),
		CreatedAt: createdAtOf(d),
		UpdatedAt: timeField(d.Fields, fieldUpdatedAt),
	}
}

func logsQuery(collection string) docstore.Query {
	return docstore.NewQuery(collection).OrderBy(fieldCreatedAt, docstore.Desc)
}

// prepare sanitizes and validates input before any write
func (r *LogRepository) prepare(ctx context.Context, op, ownerID string, input models.LogInput) (models.LogInput, error) {
	input.Title = validation.SanitizeText(input.Title)
	input.Content = validation.SanitizeText(input.Content)
	input.TagIDs = models.UniqueTagIDs(input.TagIDs)

	if err := validation.Struct(op, input); err != nil {
		return input, err
	}
	if err := r.checkTags(ctx, op, ownerID, input.TagIDs); err != nil {
		return input, err
	}
	return input, nil
}

// checkTags rejects tag ids that do not name one of the owner's tags
func (r *LogRepository) checkTags(ctx context.Context, op, ownerID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	coll, err := ownerCollection(op, ownerID, tagsCollection)
	if err != nil {
		return err
	}
	docs, err := r.db.Query(ctx, docstore.NewQuery(coll))
	if err != nil {
		return apperrors.Internal(op, fmt.Errorf("failed to load tags: %w", err))
	}
	known := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		known[d.ID] = struct{}{}
	}
	var unknown []string
	for _, id := range tagIDs {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return apperrors.Validation(op, "unknown tag ids: "+strings.Join(unknown, ", "))
	}
	return nil
}

// withTags starts a batch that touches every referenced tag, so the log
// write commits only if each tag still exists and cannot interleave with a
// tag deletion.
func withTags(op, ownerID string, tagIDs []string) (*docstore.Batch, error) {
	batch := docstore.NewBatch()
	for _, id := range tagIDs {
		path, err := childPath(op, ownerID, tagsCollection, id)
		if err != nil {
			return nil, apperrors.Validation(op, "unknown tag ids: "+id)
		}
		batch.Touch(path)
	}
	return batch, nil
}

// commitError maps a failed log write. A missing document is either the log
// itself or a tag deleted after checkTags ran; the latter is a validation
// failure.
func (r *LogRepository) commitError(ctx context.Context, op, ownerID string, tagIDs []string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) && len(tagIDs) > 0 {
		if terr := r.checkTags(ctx, op, ownerID, tagIDs); terr != nil {
			return terr
		}
	}
	return writeError(op, "log", err)
}

// Create validates and stores a new log
func (r *LogRepository) Create(ctx context.Context, ownerID string, input models.LogInput) (*models.Log, error) {
	const op = "logs.Create"

	input, err := r.prepare(ctx, op, ownerID, input)
	if err != nil {
		return nil, err
	}
	coll, err := ownerCollection(op, ownerID, logsCollection)
	if err != nil {
		return nil, err
	}
	batch, err := withTags(op, ownerID, input.TagIDs)
	if err != nil {
		return nil, err
	}
	id, err := docstore.NewID()
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	path := docstore.Doc(coll, id)

	batch.Create(path, docstore.Fields{
		fieldTitle:     input.Title,
		fieldContent:   input.Content,
		fieldTagIDs:    input.TagIDs,
		fieldCreatedAt: docstore.ServerTimestamp,
	})
	if err := r.db.Commit(ctx, batch); err != nil {
		return nil, r.commitError(ctx, op, ownerID, input.TagIDs, err)
	}
	doc, err := r.db.Get(ctx, path)
	if err != nil {
		return nil, readError(op, "log", err)
	}
	return logFromDocument(ownerID, doc), nil
}

// Get retrieves a log by id
func (r *LogRepository) Get(ctx context.Context, ownerID, logID string) (*models.Log, error) {
	const op = "logs.Get"

	path, err := childPath(op, ownerID, logsCollection, logID)
	if err != nil {
		return nil, err
	}
	doc, err := r.db.Get(ctx, path)
	if err != nil {
		return nil, readError(op, "log", err)
	}
	return logFromDocument(ownerID, doc), nil
}

// Update replaces the title, content and tags of a log and stamps updatedAt
func (r *LogRepository) Update(ctx context.Context, ownerID, logID string, input models.LogInput) error {
	const op = "logs.Update"

	input, err := r.prepare(ctx, op, ownerID, input)
	if err != nil {
		return err
	}
	path, err := childPath(op, ownerID, logsCollection, logID)
	if err != nil {
		return err
	}
	batch, err := withTags(op, ownerID, input.TagIDs)
	if err != nil {
		return err
	}

	batch.Update(path, docstore.Fields{
		fieldTitle:     input.Title,
		fieldContent:   input.Content,
		fieldTagIDs:    input.TagIDs,
		fieldUpdatedAt: docstore.ServerTimestamp,
	})
	if err := r.db.Commit(ctx, batch); err != nil {
		return r.commitError(ctx, op, ownerID, input.TagIDs, err)
	}
	return nil
}

// Delete removes a log
func (r *LogRepository) Delete(ctx context.Context, ownerID, logID string) error {
	const op = "logs.Delete"

	path, err := childPath(op, ownerID, logsCollection, logID)
	if err != nil {
		return err
	}
	if _, err := r.db.Get(ctx, path); err != nil {
		return readError(op, "log", err)
	}
	if err := r.db.Delete(ctx, path); err != nil {
		return writeError(op, "log", err)
	}
	return nil
}

// List returns the owner's logs matching filter, newest first
func (r *LogRepository) List(ctx context.Context, ownerID string, filter models.LogFilter) ([]*models.Log, error) {
	const op = "logs.List"

	coll, err := ownerCollection(op, ownerID, logsCollection)
	if err != nil {
		return nil, err
	}
	q := logsQuery(coll)
	if len(filter.TagIDs) > 0 {
		q = q.Where(fieldTagIDs, docstore.OpArrayContains, filter.TagIDs[0])
	}
	docs, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}

	logs := make([]*models.Log, 0, len(docs))
	for _, d := range docs {
		l := logFromDocument(ownerID, d)
		if filter.Matches(l) {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

// Subscribe delivers the owner's full log set, newest first, now and after
// every change. The returned function stops delivery and may be called
// any number of times.
func (r *LogRepository) Subscribe(ownerID string, onChange func(logs []*models.Log, err error)) (func(), error) {
	const op = "logs.Subscribe"

	coll, err := ownerCollection(op, ownerID, logsCollection)
	if err != nil {
		return nil, err
	}
	sub, err := r.db.Subscribe(logsQuery(coll), func(docs []*docstore.Document, err error) {
		if err != nil {
			onChange(nil, apperrors.Internal(op, err))
			return
		}
		logs := make([]*models.Log, len(docs))
		for i, d := range docs {
			logs[i] = logFromDocument(ownerID, d)
		}
		onChange(logs, nil)
	})
	if err != nil {
		return nil, apperrors.Internal(op, err)
	}
	return sub.Stop, nil
}
