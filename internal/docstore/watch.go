package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// SnapshotFunc receives the full ordered result of a subscribed query every
// time it changes. Exactly one of docs or err is meaningful.
type SnapshotFunc func(docs []*Document, err error)

// Subscription is a live query. Stop releases it; Stop is idempotent.
type Subscription struct {
	store   *Store
	query   Query
	fn      SnapshotFunc
	wake    chan struct{}
	done    chan struct{}
	stopped sync.Once
	last    []byte
}

// Subscribe opens a live query. fn is called from a dedicated goroutine with
// the initial result and again after every change to the queried
// collection; calls for one subscription never overlap and arrive in commit
// order. Results equal to the previous delivery are suppressed.
func (s *Store) Subscribe(q Query, fn SnapshotFunc) (*Subscription, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := validateCollectionPath(q.collection); err != nil {
		return nil, err
	}
	sub := &Subscription{
		store: s,
		query: q,
		fn:    fn,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.hub.add(sub)
	sub.signal()
	go sub.run()
	return sub, nil
}

// Stop ends the subscription and may be called from inside the callback.
// A callback that is already running, or has passed its final stop check,
// still completes; nothing is delivered after that.
func (sub *Subscription) Stop() {
	sub.stopped.Do(func() {
		close(sub.done)
		sub.store.hub.remove(sub)
	})
}

func (sub *Subscription) signal() {
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *Subscription) isStopped() bool {
	select {
	case <-sub.done:
		return true
	default:
		return false
	}
}

func (sub *Subscription) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sub.done
		cancel()
	}()

	for {
		select {
		case <-sub.done:
			return
		case <-sub.wake:
			docs, err := sub.store.Query(ctx, sub.query)
			if sub.isStopped() {
				return
			}
			if err != nil {
				sub.store.logger.Warn("docstore_subscription_query_failed",
					zap.String("collection", sub.query.collection),
					zap.Error(err),
				)
				sub.deliver(nil, err)
				continue
			}
			fingerprint, ferr := snapshotFingerprint(docs)
			if ferr == nil && sub.last != nil && bytes.Equal(fingerprint, sub.last) {
				continue
			}
			sub.last = fingerprint
			sub.deliver(docs, nil)
		}
	}
}

func (sub *Subscription) deliver(docs []*Document, err error) {
	if sub.isStopped() {
		return
	}
	sub.fn(docs, err)
}

func snapshotFingerprint(docs []*Document) ([]byte, error) {
	type entry struct {
		Path   string `json:"p"`
		Fields Fields `json:"f"`
	}
	entries := make([]entry, len(docs))
	for i, d := range docs {
		entries[i] = entry{Path: d.Path, Fields: d.Fields}
	}
	return json.Marshal(entries)
}

// hub fans change notifications out to subscriptions by collection
type hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*Subscription]struct{})}
}

func (h *hub) add(sub *Subscription) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *hub) notify(collections ...string) {
	if len(collections) == 0 {
		return
	}
	set := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		set[c] = struct{}{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if _, ok := set[sub.query.collection]; ok {
			sub.signal()
		}
	}
}

// notifyAll wakes every subscription, used when the change feed may have
// missed events (e.g. after a reconnect).
func (h *hub) notifyAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		sub.signal()
	}
}

func (h *hub) stopAll() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()
	for _, sub := range subs {
		sub.Stop()
	}
}
