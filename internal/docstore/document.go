package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store errors
var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidPath   = errors.New("invalid document path")
	ErrClosed        = errors.New("document store closed")
	ErrStale         = errors.New("document changed since it was read")
)

// Fields holds the top-level fields of a document
type Fields map[string]any

// Transform is a field value the store resolves at commit time
type Transform int

const (
	// ServerTimestamp is replaced with the store clock when the write commits
	ServerTimestamp Transform = iota + 1
	// DeleteField removes the field from the document
	DeleteField
)

// Document is a stored document snapshot
type Document struct {
	ID         string
	Path       string
	Fields     Fields
	CreateTime time.Time
	UpdateTime time.Time
	// Revision increases on every committed write to the document
	Revision int64
}

// DataTo decodes the document fields into v, which must be a pointer to a
// struct with json tags matching the field names.
func (d *Document) DataTo(v any) error {
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields of %s: %w", d.Path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", d.Path, err)
	}
	return nil
}

// storedDocument is the on-disk form of a document
type storedDocument struct {
	Fields     Fields    `json:"fields"`
	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
	Revision   int64     `json:"revision,omitempty"`
}

func decodeDocument(parent, id string, data []byte) (*Document, error) {
	var sd storedDocument
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", parent, id, err)
	}
	if sd.Fields == nil {
		sd.Fields = Fields{}
	}
	return &Document{
		ID:         id,
		Path:       parent + "/" + id,
		Fields:     sd.Fields,
		CreateTime: sd.CreateTime,
		UpdateTime: sd.UpdateTime,
		Revision:   sd.Revision,
	}, nil
}

func encodeDocument(d *Document) ([]byte, error) {
	return json.Marshal(storedDocument{
		Fields:     d.Fields,
		CreateTime: d.CreateTime,
		UpdateTime: d.UpdateTime,
		Revision:   d.Revision,
	})
}

// Doc joins a collection path and a document id
func Doc(collection, id string) string {
	return collection + "/" + id
}

// Collection joins a document path and a subcollection name
func Collection(docPath, name string) string {
	return docPath + "/" + name
}

// splitDocPath splits "a/b/c/d" into parent "a/b/c" and id "d". Document
// paths have an even number of non-empty segments.
func splitDocPath(path string) (parent, id string, err error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" || strings.ContainsRune(s, 0) {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	i := strings.LastIndex(path, "/")
	return path[:i], path[i+1:], nil
}

func validateCollectionPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, path)
	}
	for _, s := range segments {
		if s == "" || strings.ContainsRune(s, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// normalizeFields round-trips fields through JSON so that stored values and
// query operands share one representation (times become RFC 3339 strings,
// numbers float64, slices []any).
func normalizeFields(f Fields) (Fields, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	out := Fields{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize fields: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
