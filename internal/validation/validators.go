package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/benvon/tag-a-log/internal/apperrors"
	"github.com/go-playground/validator/v10"
)

const (
	// MaxTagNameLength is the maximum tag name length in runes
	MaxTagNameLength = 10
	// MaxLogTitleLength is the maximum log title length in runes
	MaxLogTitleLength = 20
	// MaxLogContentLength is the maximum log content length in runes
	MaxLogContentLength = 500
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("tagname", validateTagName); err != nil {
		panic(fmt.Sprintf("failed to register tagname validator: %v", err))
	}
}

// validateTagName accepts 1 to MaxTagNameLength runes without whitespace
func validateTagName(fl validator.FieldLevel) bool {
	return IsValidTagName(fl.Field().String())
}

// IsValidTagName reports whether name is a valid tag name
func IsValidTagName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxTagNameLength {
		return false
	}
	return strings.IndexFunc(name, unicode.IsSpace) < 0
}

// NormalizeTagName removes every whitespace rune from name
func NormalizeTagName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// Struct validates v and converts failures into a validation error for op
func Struct(op string, v any) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Internal(op, err)
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, describe(fe))
	}
	return apperrors.Validation(op, strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "tagname":
		return fmt.Sprintf("%s must be 1 to %d characters without spaces", field, MaxTagNameLength)
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex color such as #ff8800", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
