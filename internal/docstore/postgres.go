package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const changeChannel = "docstore_changes"

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		parent      TEXT        NOT NULL,
		id          TEXT        NOT NULL,
		fields      JSONB       NOT NULL DEFAULT '{}'::jsonb,
		create_time TIMESTAMPTZ NOT NULL,
		update_time TIMESTAMPTZ NOT NULL,
		revision    BIGINT      NOT NULL DEFAULT 0,
		PRIMARY KEY (parent, id)
	);
	ALTER TABLE documents ADD COLUMN IF NOT EXISTS revision BIGINT NOT NULL DEFAULT 0;
	CREATE INDEX IF NOT EXISTS documents_parent_pattern_idx ON documents (parent text_pattern_ops);
`

type postgresBackend struct {
	db       *sql.DB
	listener *pq.Listener
	hub      *hub
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// OpenPostgres opens a store backed by PostgreSQL. Commits from every
// process sharing the database are fanned out to local subscriptions
// through LISTEN/NOTIFY.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	s := newStore(opts...)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger := s.logger
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("docstore_listener_event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(changeChannel); err != nil {
		_ = listener.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", changeChannel, err)
	}

	b := &postgresBackend{
		db:       db,
		listener: listener,
		hub:      s.hub,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.listen()
	s.backend = b

	s.logger.Info("docstore_opened", zap.String("driver", "postgres"))
	return s, nil
}

func (b *postgresBackend) listen() {
	defer close(b.done)
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-b.stop:
			return
		case n := <-b.listener.Notify:
			if n == nil {
				// connection was re-established; events may have been missed
				b.hub.notifyAll()
				continue
			}
			b.hub.notify(n.Extra)
		case <-ping.C:
			if err := b.listener.Ping(); err != nil {
				b.logger.Warn("docstore_listener_ping_failed", zap.Error(err))
			}
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, parent string) (*Document, error) {
	var (
		id         string
		raw        []byte
		createTime time.Time
		updateTime time.Time
		revision   int64
	)
	if err := row.Scan(&id, &raw, &createTime, &updateTime, &revision); err != nil {
		return nil, err
	}
	fields := Fields{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", parent, id, err)
	}
	return &Document{
		ID:         id,
		Path:       parent + "/" + id,
		Fields:     fields,
		CreateTime: createTime.UTC(),
		UpdateTime: updateTime.UTC(),
		Revision:   revision,
	}, nil
}

func (b *postgresBackend) get(ctx context.Context, parent, id string) (*Document, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT id, fields, create_time, update_time, revision
		FROM documents
		WHERE parent = $1 AND id = $2
	`, parent, id)
	doc, err := scanDocument(row, parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, parent, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", parent, id, err)
	}
	return doc, nil
}

func (b *postgresBackend) list(ctx context.Context, parent string) ([]*Document, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, fields, create_time, update_time, revision
		FROM documents
		WHERE parent = $1
	`, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", parent, err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows, parent)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", parent, err)
	}
	return docs, nil
}

type pendingDoc struct {
	parent  string
	id      string
	existed bool
	created bool
	dirty   bool
	visible bool
	doc     *Document
}

func (b *postgresBackend) commit(ctx context.Context, ops []op, now time.Time) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	pending := make(map[string]*pendingDoc)
	var order []string

	for _, o := range ops {
		p, ok := pending[o.path]
		if !ok {
			existing, err := b.lockDocument(ctx, tx, o.parent, o.id)
			if err != nil {
				return err
			}
			p = &pendingDoc{parent: o.parent, id: o.id, existed: existing != nil, doc: existing}
			pending[o.path] = p
			order = append(order, o.path)
		}
		next, err := applyOp(p.doc, o, now)
		if err != nil {
			return err
		}
		if o.kind == opCreate {
			p.created = true
		}
		if o.kind != opVerify {
			p.dirty = true
		}
		if o.kind.visible() {
			p.visible = true
		}
		p.doc = next
	}

	parents := make(map[string]struct{})
	for _, path := range order {
		p := pending[path]
		if !p.dirty {
			continue
		}
		if err := writePending(ctx, tx, p); err != nil {
			return err
		}
		if p.visible {
			parents[p.parent] = struct{}{}
		}
	}
	for parent := range parents {
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, parent); err != nil {
			return fmt.Errorf("failed to queue change notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *postgresBackend) lockDocument(ctx context.Context, tx *sql.Tx, parent, id string) (*Document, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, fields, create_time, update_time, revision
		FROM documents
		WHERE parent = $1 AND id = $2
		FOR UPDATE
	`, parent, id)
	doc, err := scanDocument(row, parent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", parent, id, err)
	}
	return doc, nil
}

func writePending(ctx context.Context, tx *sql.Tx, p *pendingDoc) error {
	if p.doc == nil {
		if !p.existed {
			return nil
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE parent = $1 AND id = $2`, p.parent, p.id)
		if err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", p.parent, p.id, err)
		}
		return nil
	}

	raw, err := json.Marshal(p.doc.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", p.parent, p.id, err)
	}

	query := `
		INSERT INTO documents (parent, id, fields, create_time, update_time, revision)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (parent, id) DO UPDATE
		SET fields = EXCLUDED.fields, update_time = EXCLUDED.update_time, revision = EXCLUDED.revision
	`
	if p.created && !p.existed {
		query = `
			INSERT INTO documents (parent, id, fields, create_time, update_time, revision)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
	}
	_, err = tx.ExecContext(ctx, query, p.parent, p.id, raw, p.doc.CreateTime, p.doc.UpdateTime, p.doc.Revision)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, p.parent, p.id)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", p.parent, p.id, err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (b *postgresBackend) deleteTree(ctx context.Context, parent, id string) ([]string, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM documents
		WHERE (parent = $1 AND id = $2) OR parent LIKE $3
		RETURNING parent
	`, parent, id, escapeLike(parent+"/"+id+"/")+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to delete tree: %w", err)
	}

	touched := map[string]struct{}{parent: {}}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		touched[p] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	parents := make([]string, 0, len(touched))
	for p := range touched {
		parents = append(parents, p)
		if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changeChannel, p); err != nil {
			return nil, fmt.Errorf("failed to queue change notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return parents, nil
}

func (b *postgresBackend) ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *postgresBackend) close() error {
	close(b.stop)
	<-b.done
	lerr := b.listener.Close()
	if err := b.db.Close(); err != nil {
		return err
	}
	return lerr
}
