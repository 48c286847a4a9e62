package middleware

import (
	"context"

	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/request"
)

// SignedInContext returns ctx as the Auth middleware leaves it for identity.
// Exported for handler tests in other packages.
func SignedInContext(ctx context.Context, identity *models.Identity) context.Context {
	return request.WithIdentity(ctx, identity, &models.JWTClaims{
		Sub:   identity.OwnerID(),
		Email: identity.Email,
		Iss:   "tag-a-log",
	})
}
