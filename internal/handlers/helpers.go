package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/benvon/tag-a-log/internal/apperrors"
	logpkg "github.com/benvon/tag-a-log/internal/logger"
	"go.uber.org/zap"
)

// maxErrorMessageLength bounds messages echoed to clients
const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   logpkg.SanitizeString(message, maxErrorMessageLength),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondAppError maps an application error to its status code. Internal and
// write failures are logged and reported without detail.
func respondAppError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperrors.HTTPStatus(err)
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		respondJSONError(w, status, "Bad Request", apperrors.MessageOf(err))
	case apperrors.KindNotFound:
		respondJSONError(w, status, "Not Found", apperrors.MessageOf(err))
	case apperrors.KindAuth:
		respondJSONError(w, status, "Unauthorized", apperrors.MessageOf(err))
	default:
		logger.Error("request_failed",
			zap.String("method", r.Method),
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, status, "Internal Server Error", "An unexpected error occurred")
	}
}

// decodeJSON decodes the request body into dst, rejecting unknown fields and
// trailing data
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperrors.Validation("decode", "Request body is required")
		case errors.As(err, &maxBytesErr):
			return apperrors.Validation("decode", "Request body is too large")
		default:
			return apperrors.Validation("decode", "Invalid request body")
		}
	}
	if decoder.More() {
		return apperrors.Validation("decode", "Request body must contain a single JSON object")
	}
	return nil
}
