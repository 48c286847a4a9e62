package logger

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{"empty", "", 10, ""},
		{"plain", "/api/v1/tags", 100, "/api/v1/tags"},
		{"strips line breaks", "a\nb\r\nc", 100, "abc"},
		{"strips control characters", "x\x00y\x1bz\tw", 100, "xyzw"},
		{"drops invalid utf8", "ok\xffok", 100, "okok"},
		{"truncates", "abcdefgh", 4, "abcd..."},
		{"does not split runes", "ééé", 3, "é..."},
		{"default length", strings.Repeat("a", MaxGeneralStringLength+1), 0, strings.Repeat("a", MaxGeneralStringLength) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SanitizeString(tt.input, tt.maxLength)
			if got != tt.want {
				t.Errorf("SanitizeString() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("SanitizeString() returned invalid UTF-8 %q", got)
			}
		})
	}
}

func TestSanitizeHelpers(t *testing.T) {
	t.Parallel()

	if got := SanitizeError(nil); got != "" {
		t.Errorf("SanitizeError(nil) = %q", got)
	}
	if got := SanitizeError(errors.New("bad\ninput")); got != "badinput" {
		t.Errorf("SanitizeError() = %q", got)
	}
	if got := SanitizePath("/api/v1/logs/" + strings.Repeat("x", MaxPathLength)); len(got) != MaxPathLength+3 {
		t.Errorf("SanitizePath() length = %d, want %d", len(got), MaxPathLength+3)
	}
	if got := SanitizeOwnerID("user\r\n1"); got != "user1" {
		t.Errorf("SanitizeOwnerID() = %q", got)
	}
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	for _, debug := range []bool{false, true} {
		l, err := NewProductionLogger("test", debug)
		if err != nil {
			t.Fatalf("NewProductionLogger(%v) error = %v", debug, err)
		}
		if got := l.Core().Enabled(level(true)); got != debug {
			t.Errorf("debug enabled = %v, want %v", got, debug)
		}
	}
	if err := Sync(nil); err != nil {
		t.Errorf("Sync(nil) error = %v", err)
	}
}
