package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/tag-a-log/internal/docstore"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*docstore.Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store, err := docstore.OpenBadger("", docstore.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

var errInjected = errors.New("injected commit failure")

// failingCommitDB fails every write while failCommit is set
type failingCommitDB struct {
	DB
	mu         sync.Mutex
	failCommit bool
}

func (f *failingCommitDB) setFail(fail bool) {
	f.mu.Lock()
	f.failCommit = fail
	f.mu.Unlock()
}

func (f *failingCommitDB) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failCommit
}

func (f *failingCommitDB) Commit(ctx context.Context, b *docstore.Batch) error {
	if f.failing() {
		return errInjected
	}
	return f.DB.Commit(ctx, b)
}

func (f *failingCommitDB) Add(ctx context.Context, collection string, fields docstore.Fields) (*docstore.Document, error) {
	if f.failing() {
		return nil, errInjected
	}
	return f.DB.Add(ctx, collection, fields)
}

func (f *failingCommitDB) SetMerge(ctx context.Context, path string, fields docstore.Fields) error {
	if f.failing() {
		return errInjected
	}
	return f.DB.SetMerge(ctx, path, fields)
}

func (f *failingCommitDB) Update(ctx context.Context, path string, fields docstore.Fields) error {
	if f.failing() {
		return errInjected
	}
	return f.DB.Update(ctx, path, fields)
}

func (f *failingCommitDB) Delete(ctx context.Context, path string) error {
	if f.failing() {
		return errInjected
	}
	return f.DB.Delete(ctx, path)
}

func (f *failingCommitDB) RecursiveDelete(ctx context.Context, path string) error {
	if f.failing() {
		return errInjected
	}
	return f.DB.RecursiveDelete(ctx, path)
}

// interleavingDB runs between once, right after the first query it serves
// returns, so a concurrent writer can commit between a repository's read
// and its write.
type interleavingDB struct {
	DB
	once    sync.Once
	between func()
}

func (d *interleavingDB) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	docs, err := d.DB.Query(ctx, q)
	d.once.Do(d.between)
	return docs, err
}
