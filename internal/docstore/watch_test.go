package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func collect(t *testing.T, s *Store, q Query) (<-chan []*Document, *Subscription) {
	t.Helper()
	ch := make(chan []*Document, 16)
	sub, err := s.Subscribe(q, func(docs []*Document, err error) {
		if err != nil {
			return
		}
		ch <- docs
	})
	require.NoError(t, err)
	t.Cleanup(sub.Stop)
	return ch, sub
}

func next(t *testing.T, ch <-chan []*Document) []*Document {
	t.Helper()
	select {
	case docs := <-ch:
		return docs
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func assertQuiet(t *testing.T, ch <-chan []*Document) {
	t.Helper()
	select {
	case docs := <-ch:
		t.Fatalf("unexpected snapshot with %d documents", len(docs))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_InitialAndUpdates(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t)
	ctx := context.Background()

	ch, _ := collect(t, s, NewQuery("users/u1/tags").OrderBy("createdAt", Desc))
	assert.Empty(t, next(t, ch))

	first, err := s.Add(ctx, "users/u1/tags", Fields{"name": "a", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	docs := next(t, ch)
	require.Len(t, docs, 1)
	assert.Equal(t, first.ID, docs[0].ID)

	clock.Advance(time.Second)
	second, err := s.Add(ctx, "users/u1/tags", Fields{"name": "b", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	docs = next(t, ch)
	require.Len(t, docs, 2)
	assert.Equal(t, second.ID, docs[0].ID)

	require.NoError(t, s.Delete(ctx, first.Path))
	docs = next(t, ch)
	require.Len(t, docs, 1)
	assert.Equal(t, second.ID, docs[0].ID)
}

func TestSubscribe_IgnoresOtherCollections(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	ch, _ := collect(t, s, NewQuery("users/u1/tags"))
	next(t, ch)

	require.NoError(t, s.Set(ctx, "users/u2/tags/t1", Fields{"name": "x"}))
	require.NoError(t, s.Set(ctx, "users/u1/logs/l1", Fields{"title": "x"}))
	assertQuiet(t, ch)
}

func TestSubscribe_SuppressesUnchangedResults(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1/tags/t1", Fields{"name": "x"}))
	ch, _ := collect(t, s, NewQuery("users/u1/tags"))
	require.Len(t, next(t, ch), 1)

	require.NoError(t, s.Set(ctx, "users/u1/tags/t1", Fields{"name": "x"}))
	assertQuiet(t, ch)

	require.NoError(t, s.Set(ctx, "users/u1/tags/t1", Fields{"name": "y"}))
	docs := next(t, ch)
	require.Len(t, docs, 1)
	assert.Equal(t, "y", docs[0].Fields["name"])
}

func TestSubscribe_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	ch, sub := collect(t, s, NewQuery("users/u1/tags"))
	next(t, ch)

	sub.Stop()
	sub.Stop()

	require.NoError(t, s.Set(ctx, "users/u1/tags/t1", Fields{"name": "x"}))
	assertQuiet(t, ch)
}

func TestSubscribe_StopInsideCallback(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	ch := make(chan []*Document, 16)
	var sub *Subscription
	ready := make(chan struct{})
	sub, err := s.Subscribe(NewQuery("users/u1/tags"), func(docs []*Document, err error) {
		<-ready
		ch <- docs
		sub.Stop()
	})
	require.NoError(t, err)
	close(ready)
	next(t, ch)

	require.NoError(t, s.Set(ctx, "users/u1/tags/t1", Fields{"name": "x"}))
	assertQuiet(t, ch)
}

func TestSubscription_DeliverAfterStopIsDropped(t *testing.T) {
	t.Parallel()

	calls := 0
	sub := &Subscription{
		fn:   func([]*Document, error) { calls++ },
		done: make(chan struct{}),
	}
	sub.deliver(nil, nil)
	close(sub.done)
	sub.deliver(nil, nil)
	assert.Equal(t, 1, calls)
}

func TestSubscribe_TouchIsSilent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1/tags/t1", Fields{"name": "x"}))
	ch, _ := collect(t, s, NewQuery("users/u1/tags"))
	require.Len(t, next(t, ch), 1)

	require.NoError(t, s.Commit(ctx, NewBatch().Touch("users/u1/tags/t1")))
	assertQuiet(t, ch)
}

func TestSubscribe_RecursiveDeleteNotifies(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users/u1", Fields{}))
	require.NoError(t, s.Set(ctx, "users/u1/logs/l1", Fields{"title": "x"}))

	ch, _ := collect(t, s, NewQuery("users/u1/logs"))
	require.Len(t, next(t, ch), 1)

	require.NoError(t, s.RecursiveDelete(ctx, "users/u1"))
	assert.Empty(t, next(t, ch))
}

func TestSubscribe_CloseStopsSubscriptions(t *testing.T) {
	t.Parallel()
	s, err := OpenBadger("")
	require.NoError(t, err)

	ch := make(chan []*Document, 4)
	sub, err := s.Subscribe(NewQuery("users"), func(docs []*Document, err error) {
		if err == nil {
			ch <- docs
		}
	})
	require.NoError(t, err)
	next(t, ch)

	require.NoError(t, s.Close())
	select {
	case <-sub.done:
	default:
		t.Fatal("subscription still running after Close")
	}

	_, err = s.Subscribe(NewQuery("users"), func([]*Document, error) {})
	assert.ErrorIs(t, err, ErrClosed)
}
