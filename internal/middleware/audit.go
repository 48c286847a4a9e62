package middleware

import (
	"net/http"
	"strings"

	logpkg "github.com/benvon/tag-a-log/internal/logger"
	"github.com/benvon/tag-a-log/internal/request"
	"go.uber.org/zap"
)

// auditedActions maps state-changing requests worth an audit record
var auditedActions = map[string]string{
	"POST /api/v1/auth/signup":        "account_created",
	"POST /api/v1/auth/signout":       "session_revoked",
	"POST /api/v1/account/deletion":   "account_deletion_scheduled",
	"DELETE /api/v1/account/deletion": "account_deletion_cancelled",
	"GET /api/v1/logs/export":         "logs_exported",
	"POST /api/v1/auth/federated":     "federated_sign_in",
	"POST /api/v1/auth/oidc/callback": "federated_sign_in",
}

// Audit records security events and successful account lifecycle actions
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			status := wrapped.statusCode
			path := logpkg.SanitizePath(r.URL.Path)
			ip := logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)

			switch {
			case status == http.StatusUnauthorized || status == http.StatusForbidden:
				event := "security_event"
				if strings.HasPrefix(r.URL.Path, "/api/v1/auth/sign") {
					event = "sign_in_rejected"
				}
				logger.Warn(event,
					zap.Int("status_code", status),
					zap.String("method", r.Method),
					zap.String("path", path),
					zap.String("ip", ip),
				)
			case status == http.StatusTooManyRequests:
				logger.Warn("rate_limit_violation",
					zap.String("method", r.Method),
					zap.String("path", path),
					zap.String("ip", ip),
				)
			case status < http.StatusBadRequest:
				if action, ok := auditedActions[r.Method+" "+strings.TrimSuffix(r.URL.Path, "/")]; ok {
					logger.Info("audit",
						zap.String("action", action),
						zap.Int("status_code", status),
						zap.String("ip", ip),
					)
				}
			}
		})
	}
}
