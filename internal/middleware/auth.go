package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/benvon/tag-a-log/internal/apperrors"
	logpkg "github.com/benvon/tag-a-log/internal/logger"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/benvon/tag-a-log/internal/request"
	"go.uber.org/zap"
)

// SessionAuthenticator resolves a session token to the identity it was issued to.
// *identity.Service implements it.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, *models.JWTClaims, error)
}

// accessTokenParam carries the session token on WebSocket upgrades, where
// browsers cannot set an Authorization header.
const accessTokenParam = "access_token"

// Auth creates authentication middleware that validates session tokens and
// puts the identity and its claims into the request context
func Auth(authn SessionAuthenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing or malformed Authorization header", logger)
				return
			}

			identity, claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				status := apperrors.HTTPStatus(err)
				if status == http.StatusUnauthorized {
					logger.Debug("token_rejected",
						zap.String("path", logpkg.SanitizePath(r.URL.Path)),
						zap.String("reason", logpkg.SanitizeError(err)),
					)
					respondErrorJSON(w, r, status, "Unauthorized", "Invalid or expired token", logger)
					return
				}
				logger.Error("authentication_failed",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("error", logpkg.SanitizeError(err)),
				)
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
				return
			}

			ctx := request.WithIdentity(r.Context(), identity, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken reads "Authorization: Bearer <token>", falling back to the
// access_token query parameter for WebSocket upgrades.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if isWebSocketUpgrade(r) {
			if t := r.URL.Query().Get(accessTokenParam); t != "" {
				return t, true
			}
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
