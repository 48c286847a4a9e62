package models

import "time"

// Tag is a user-defined label used to categorize logs
type Tag struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// TagInput carries the fields of a new tag
type TagInput struct {
	Name  string `json:"name" validate:"required,tagname"`
	Color string `json:"color" validate:"required,hexcolor"`
}

// TagPatch carries a partial tag update; nil fields are left unchanged
type TagPatch struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,tagname"`
	Color *string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// IsEmpty reports whether the patch changes nothing
func (p TagPatch) IsEmpty() bool {
	return p.Name == nil && p.Color == nil
}
