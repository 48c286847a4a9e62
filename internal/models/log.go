package models

import (
	"slices"
	"strings"
	"time"
)

// Log is a dated journal entry
type Log struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	TagIDs    []string   `json:"tag_ids"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// LogInput carries the writable fields of a log
type LogInput struct {
	Title   string   `json:"title" validate:"required,max=20"`
	Content string   `json:"content" validate:"required,max=500"`
	TagIDs  []string `json:"tag_ids" validate:"dive,required"`
}

// LogFilter narrows a log listing. A log matches when it carries every
// selected tag and, if Search is set, its title or content contains Search
// case-insensitively.
type LogFilter struct {
	TagIDs []string
	Search string
}

// HasTag reports whether the log references tagID
func (l *Log) HasTag(tagID string) bool {
	return slices.Contains(l.TagIDs, tagID)
}

// Matches reports whether l satisfies the filter
func (f LogFilter) Matches(l *Log) bool {
	for _, id := range f.TagIDs {
		if !l.HasTag(id) {
			return false
		}
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(l.Title), search) ||
		strings.Contains(strings.ToLower(l.Content), search)
}

// WithoutTag returns ids with every occurrence of tagID removed
func WithoutTag(ids []string, tagID string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != tagID {
			out = append(out, id)
		}
	}
	return out
}

// UniqueTagIDs returns ids with duplicates removed, keeping first occurrences
func UniqueTagIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
