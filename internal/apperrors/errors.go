package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to react to it
type Kind string

const (
	// KindValidation is invalid input caught before any I/O
	KindValidation Kind = "validation"
	// KindNotFound means the operation targeted a missing document
	KindNotFound Kind = "not_found"
	// KindWrite means the store rejected or failed a write or batch
	KindWrite Kind = "write"
	// KindAuth covers sign-in/sign-up failures, including a cancelled federated flow
	KindAuth Kind = "auth"
	// KindInternal is anything else
	KindInternal Kind = "internal"
)

// Error is an application error carrying a Kind
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "tags.Delete"
	Message string // user-facing message
	Err     error  // underlying cause (optional)
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by Kind so errors.Is(err, ErrNotFound) works
// for any NotFound error regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinel errors, one per Kind
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrWrite      = &Error{Kind: KindWrite}
	ErrAuth       = &Error{Kind: KindAuth}
)

// Validation creates a validation error
func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NotFound creates a not-found error
func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Write wraps a store failure
func Write(op string, err error) *Error {
	return &Error{Kind: KindWrite, Op: op, Message: "write failed", Err: err}
}

// Auth creates an authentication error
func Auth(op, message string, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, Message: message, Err: err}
}

// Internal wraps an unexpected failure
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err carries none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-facing message of err
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "An unexpected error occurred"
}

// HTTPStatus maps an error to the status code the API responds with
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
