package docstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	autoIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	autoIDLength   = 20
)

// backend is the storage engine behind a Store
type backend interface {
	get(ctx context.Context, parent, id string) (*Document, error)
	list(ctx context.Context, parent string) ([]*Document, error)
	commit(ctx context.Context, ops []op, now time.Time) error
	deleteTree(ctx context.Context, parent, id string) ([]string, error)
	ping(ctx context.Context) error
	close() error
}

// Store is a hierarchical document store. Documents live in collections
// ("users"), documents can own subcollections ("users/{uid}/logs"), writes
// can be grouped into atomic batches and queries can be subscribed to.
type Store struct {
	backend backend
	hub     *hub
	now     func() time.Time
	logger  *zap.Logger
	closed  atomic.Bool
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used to resolve ServerTimestamp
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func newStore(opts ...Option) *Store {
	s := &Store{
		hub:    newHub(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// NewID returns a fresh 20 character document id
func NewID() (string, error) {
	id, err := gonanoid.Generate(autoIDAlphabet, autoIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate document id: %w", err)
	}
	return id, nil
}

// Get reads the document at path
func (s *Store) Get(ctx context.Context, path string) (*Document, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	parent, id, err := splitDocPath(path)
	if err != nil {
		return nil, err
	}
	return s.backend.get(ctx, parent, id)
}

// Add creates a document with a generated id in collection
func (s *Store) Add(ctx context.Context, collection string, fields Fields) (*Document, error) {
	if err := validateCollectionPath(collection); err != nil {
		return nil, err
	}
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	path := Doc(collection, id)
	if err := s.Commit(ctx, NewBatch().Create(path, fields)); err != nil {
		return nil, err
	}
	return s.Get(ctx, path)
}

// Create writes a new document at path, failing if it exists
func (s *Store) Create(ctx context.Context, path string, fields Fields) error {
	return s.Commit(ctx, NewBatch().Create(path, fields))
}

// Set replaces the document at path
func (s *Store) Set(ctx context.Context, path string, fields Fields) error {
	return s.Commit(ctx, NewBatch().Set(path, fields))
}

// SetMerge merges fields into the document at path, creating it if needed
func (s *Store) SetMerge(ctx context.Context, path string, fields Fields) error {
	return s.Commit(ctx, NewBatch().SetMerge(path, fields))
}

// Update merges fields into the existing document at path
func (s *Store) Update(ctx context.Context, path string, fields Fields) error {
	return s.Commit(ctx, NewBatch().Update(path, fields))
}

// Delete removes the document at path. Subcollections are left in place;
// use RecursiveDelete to remove them too.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Commit(ctx, NewBatch().Delete(path))
}

// Commit applies every write in b atomically
func (s *Store) Commit(ctx context.Context, b *Batch) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if b.err != nil {
		return b.err
	}
	if len(b.ops) == 0 {
		return nil
	}
	if err := s.backend.commit(ctx, b.ops, s.timestamp()); err != nil {
		return err
	}
	s.hub.notify(b.parents()...)
	return nil
}

// Query runs q against a consistent snapshot of its collection
func (s *Store) Query(ctx context.Context, q Query) ([]*Document, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := validateCollectionPath(q.collection); err != nil {
		return nil, err
	}
	docs, err := s.backend.list(ctx, q.collection)
	if err != nil {
		return nil, err
	}
	return q.apply(docs), nil
}

// RecursiveDelete removes the document at path and every document in its
// subcollections. The deletion is not atomic; on failure it can be retried.
func (s *Store) RecursiveDelete(ctx context.Context, path string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	parent, id, err := splitDocPath(path)
	if err != nil {
		return err
	}
	parents, err := s.backend.deleteTree(ctx, parent, id)
	if len(parents) > 0 {
		s.hub.notify(parents...)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s recursively: %w", path, err)
	}
	s.logger.Debug("docstore_recursive_delete",
		zap.String("path", path),
		zap.Int("collections", len(parents)),
	)
	return nil
}

// Ping checks the backend is reachable
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.backend.ping(ctx)
}

// Close stops every subscription and closes the backend
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.hub.stopAll()
	return s.backend.close()
}
