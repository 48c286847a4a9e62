package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

const (
	docKeyPrefix      = "d/"
	maxCommitAttempts = 5
	valueLogGCRatio   = 0.5
)

var valueLogGCInterval = 5 * time.Minute

// badgerLogger routes badger's internal log lines through zap
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}
func (l *badgerLogger) Infof(format string, args ...interface{})  { l.logger.Debugf(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }

type badgerBackend struct {
	db     *badger.DB
	logger *zap.Logger
	stopGC chan struct{}
	gcDone chan struct{}
}

// OpenBadger opens a store backed by an embedded badger database at path.
// An empty path opens an in-memory database.
func OpenBadger(path string, opts ...Option) (*Store, error) {
	s := newStore(opts...)

	var bopts badger.Options
	if path == "" {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
		}
		bopts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	bopts = bopts.WithLogger(&badgerLogger{logger: s.logger.Named("badger").Sugar()})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	b := &badgerBackend{db: db, logger: s.logger}
	if path != "" {
		b.stopGC = make(chan struct{})
		b.gcDone = make(chan struct{})
		go b.runValueLogGC()
	}
	s.backend = b

	s.logger.Info("docstore_opened",
		zap.String("driver", "badger"),
		zap.Bool("in_memory", path == ""),
	)
	return s, nil
}

func docKey(parent, id string) []byte {
	return []byte(docKeyPrefix + parent + "\x00" + id)
}

func collectionPrefix(parent string) []byte {
	return []byte(docKeyPrefix + parent + "\x00")
}

func splitDocKey(key []byte) (parent, id string, ok bool) {
	rest, found := strings.CutPrefix(string(key), docKeyPrefix)
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, "\x00")
}

func readDocument(txn *badger.Txn, parent, id string) (*Document, error) {
	item, err := txn.Get(docKey(parent, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc *Document
	err = item.Value(func(val []byte) error {
		var derr error
		doc, derr = decodeDocument(parent, id, val)
		return derr
	})
	return doc, err
}

func (b *badgerBackend) get(_ context.Context, parent, id string) (*Document, error) {
	var doc *Document
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		doc, err = readDocument(txn, parent, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", parent, id, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, parent, id)
	}
	return doc, nil
}

func (b *badgerBackend) list(ctx context.Context, parent string) ([]*Document, error) {
	var docs []*Document
	err := b.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = collectionPrefix(parent)
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			_, id, ok := splitDocKey(item.Key())
			if !ok {
				continue
			}
			err := item.Value(func(val []byte) error {
				doc, err := decodeDocument(parent, id, val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", parent, err)
	}
	return docs, nil
}

func (b *badgerBackend) commit(ctx context.Context, ops []op, now time.Time) error {
	var err error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			return applyOpsBadger(txn, ops, now)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.logger.Debug("docstore_commit_conflict", zap.Int("attempt", attempt))
	}
	return fmt.Errorf("commit failed after %d attempts: %w", maxCommitAttempts, err)
}

func applyOpsBadger(txn *badger.Txn, ops []op, now time.Time) error {
	for _, o := range ops {
		existing, err := readDocument(txn, o.parent, o.id)
		if err != nil {
			return err
		}
		next, err := applyOp(existing, o, now)
		if err != nil {
			return err
		}
		if o.kind == opVerify {
			continue
		}
		if next == nil {
			if existing == nil {
				continue
			}
			if err := txn.Delete(docKey(o.parent, o.id)); err != nil {
				return err
			}
			continue
		}
		data, err := encodeDocument(next)
		if err != nil {
			return err
		}
		if err := txn.Set(docKey(o.parent, o.id), data); err != nil {
			return err
		}
	}
	return nil
}

func (b *badgerBackend) deleteTree(ctx context.Context, parent, id string) ([]string, error) {
	keys := [][]byte{docKey(parent, id)}
	touched := map[string]struct{}{parent: {}}

	err := b.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.PrefetchValues = false
		iopts.Prefix = []byte(docKeyPrefix + parent + "/" + id + "/")
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().KeyCopy(nil)
			if p, _, ok := splitDocKey(key); ok {
				touched[p] = struct{}{}
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	parents := make([]string, 0, len(touched))
	for p := range touched {
		parents = append(parents, p)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return parents, err
		}
	}
	if err := wb.Flush(); err != nil {
		return parents, err
	}
	return parents, nil
}

func (b *badgerBackend) ping(_ context.Context) error {
	if b.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

func (b *badgerBackend) close() error {
	if b.stopGC != nil {
		close(b.stopGC)
		<-b.gcDone
	}
	return b.db.Close()
}

func (b *badgerBackend) runValueLogGC() {
	defer close(b.gcDone)
	ticker := time.NewTicker(valueLogGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopGC:
			return
		case <-ticker.C:
			err := b.db.RunValueLogGC(valueLogGCRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				b.logger.Warn("badger_value_log_gc_failed", zap.Error(err))
			}
		}
	}
}
