// Package request holds per-request context helpers shared by middleware and handlers
package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/tag-a-log/internal/models"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	claimsContextKey   contextKey = "claims"
)

// IdentityContextKey returns the context key used for the identity. Exposed for tests that inject non-identity values.
func IdentityContextKey() contextKey { return identityContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithIdentity returns a context carrying the signed-in identity and its session claims
func WithIdentity(ctx context.Context, identity *models.Identity, claims *models.JWTClaims) context.Context {
	ctx = context.WithValue(ctx, identityContextKey, identity)
	return context.WithValue(ctx, claimsContextKey, claims)
}

// IdentityFromContext returns the identity from the request context, or nil if missing or wrong type.
func IdentityFromContext(r *http.Request) *models.Identity {
	i, _ := r.Context().Value(identityContextKey).(*models.Identity)
	return i
}

// ClaimsFromContext returns the session claims from the request context, or nil.
func ClaimsFromContext(r *http.Request) *models.JWTClaims {
	c, _ := r.Context().Value(claimsContextKey).(*models.JWTClaims)
	return c
}

// OwnerID returns the owner id of the signed-in identity, or "" when unauthenticated
func OwnerID(r *http.Request) string {
	if i := IdentityFromContext(r); i != nil {
		return i.OwnerID()
	}
	return ""
}
