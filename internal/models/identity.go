package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityProvider names how an identity authenticates
type IdentityProvider string

const (
	IdentityProviderPassword IdentityProvider = "password"
	IdentityProviderOIDC     IdentityProvider = "oidc"
)

// Identity is an authenticated principal; its ID is the owner id of every
// document the user owns.
type Identity struct {
	ID           uuid.UUID        `json:"id"`
	Email        string           `json:"email"`
	Name         *string          `json:"name,omitempty"`
	Provider     IdentityProvider `json:"provider"`
	Subject      string           `json:"-"`
	Issuer       string           `json:"-"`
	PasswordHash string           `json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
}

// OwnerID returns the id used to scope the identity's documents
func (i *Identity) OwnerID() string {
	return i.ID.String()
}

// Credentials are an email/password pair
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}
