package docstore

import (
	"fmt"
	"time"
)

type opKind int

const (
	opSet opKind = iota
	opSetMerge
	opUpdate
	opCreate
	opDelete
	opTouch
	opVerify
)

// visible reports whether the op changes what readers of the collection see
func (k opKind) visible() bool {
	return k != opTouch && k != opVerify
}

type op struct {
	kind     opKind
	path     string
	parent   string
	id       string
	fields   Fields
	revision int64
}

// Batch collects writes that commit atomically: either every write is
// applied or none is.
type Batch struct {
	ops []op
	err error
}

// NewBatch returns an empty batch
func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) add(o op) *Batch {
	if b.err != nil {
		return b
	}
	parent, id, err := splitDocPath(o.path)
	if err != nil {
		b.err = err
		return b
	}
	o.parent, o.id = parent, id
	b.ops = append(b.ops, o)
	return b
}

// Set replaces the document at path, creating it if needed
func (b *Batch) Set(path string, fields Fields) *Batch {
	return b.add(op{kind: opSet, path: path, fields: fields})
}

// SetMerge merges fields into the document at path, creating it if needed
func (b *Batch) SetMerge(path string, fields Fields) *Batch {
	return b.add(op{kind: opSetMerge, path: path, fields: fields})
}

// Update merges fields into an existing document; the commit fails with
// ErrNotFound if the document does not exist.
func (b *Batch) Update(path string, fields Fields) *Batch {
	return b.add(op{kind: opUpdate, path: path, fields: fields})
}

// Create writes a new document; the commit fails with ErrAlreadyExists if
// the document exists.
func (b *Batch) Create(path string, fields Fields) *Batch {
	return b.add(op{kind: opCreate, path: path, fields: fields})
}

// Delete removes the document at path. Deleting a missing document is a no-op.
func (b *Batch) Delete(path string) *Batch { return b.add(op{kind: opDelete, path: path}) }

// Touch bumps the revision of an existing document without changing its
// fields; the commit fails with ErrNotFound if the document does not exist.
// A batch that touches a document cannot interleave with one that verifies
// or writes it: one of the two commits first and the other sees its result.
func (b *Batch) Touch(path string) *Batch { return b.add(op{kind: opTouch, path: path}) }

// Verify makes the commit fail with ErrStale unless the document is still at
// revision, or with ErrNotFound if it no longer exists.
func (b *Batch) Verify(path string, revision int64) *Batch {
	return b.add(op{kind: opVerify, path: path, revision: revision})
}

// Len returns the number of writes in the batch
func (b *Batch) Len() int { return len(b.ops) }

// Err returns the first error recorded while building the batch
func (b *Batch) Err() error { return b.err }

// parents returns the distinct collections whose contents the batch changes
func (b *Batch) parents() []string {
	seen := make(map[string]struct{}, len(b.ops))
	var out []string
	for _, o := range b.ops {
		if !o.kind.visible() {
			continue
		}
		if _, ok := seen[o.parent]; ok {
			continue
		}
		seen[o.parent] = struct{}{}
		out = append(out, o.parent)
	}
	return out
}

// applyOp computes the document that results from applying o to existing
// (nil when absent). A nil result means the document is deleted.
func applyOp(existing *Document, o op, now time.Time) (*Document, error) {
	switch o.kind {
	case opDelete:
		return nil, nil
	case opVerify:
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, o.path)
		}
		if existing.Revision != o.revision {
			return nil, fmt.Errorf("%w: %s at revision %d, expected %d", ErrStale, o.path, existing.Revision, o.revision)
		}
		return existing, nil
	case opTouch:
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, o.path)
		}
		touched := *existing
		touched.Revision++
		return &touched, nil
	case opCreate:
		if existing != nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, o.path)
		}
	case opUpdate:
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, o.path)
		}
	}

	var base Fields
	if existing != nil && (o.kind == opSetMerge || o.kind == opUpdate) {
		base = existing.Fields
	}
	fields, err := resolveFields(base, o.fields, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.path, err)
	}

	doc := &Document{
		ID:         o.id,
		Path:       o.path,
		Fields:     fields,
		CreateTime: now,
		UpdateTime: now,
		Revision:   1,
	}
	if existing != nil {
		doc.CreateTime = existing.CreateTime
		doc.Revision = existing.Revision + 1
	}
	return doc, nil
}

func resolveFields(base, changes Fields, now time.Time) (Fields, error) {
	out := make(Fields, len(base)+len(changes))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range changes {
		if t, ok := v.(Transform); ok {
			switch t {
			case DeleteField:
				delete(out, k)
			case ServerTimestamp:
				out[k] = now
			default:
				return nil, fmt.Errorf("unknown field transform %d on %q", t, k)
			}
			continue
		}
		out[k] = v
	}
	return normalizeFields(out)
}
