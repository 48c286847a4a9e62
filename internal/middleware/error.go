package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	logpkg "github.com/benvon/tag-a-log/internal/logger"
	"github.com/benvon/tag-a-log/internal/metrics"
	"github.com/benvon/tag-a-log/internal/request"
	"go.uber.org/zap"
)

// ErrorResponse is the error envelope written by middleware. Handlers use the
// same shape plus the request path.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// ErrorHandler turns handler panics into 500 envelopes. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newResponseWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				metrics.PanicsRecoveredTotal.Inc()

				fields := []zap.Field{
					zap.String("error", logpkg.SanitizeString(fmt.Sprint(rec), logpkg.MaxGeneralStringLength)),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.ByteString("stack", debug.Stack()),
				}
				if ownerID := request.OwnerID(r); ownerID != "" {
					fields = append(fields, zap.String("owner_id", logpkg.SanitizeOwnerID(ownerID)))
				}
				logger.Error("panic_recovered", fields...)

				// a partial response cannot be replaced
				if wrapped.wroteHeader || wrapped.hijacked {
					return
				}
				respondErrorJSON(w, r, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred", logger)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}

// respondErrorJSON sends an error JSON response
func respondErrorJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := ErrorResponse{
		Success:   false,
		Error:     errorType,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      logpkg.SanitizePath(r.URL.Path),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
		)
	}
}
