package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", "<empty>"},
		{"short", "abc", "[token:3 chars]"},
		{"long", strings.Repeat("x", 64), "[token:64 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizeTokenNeverEchoesValue(t *testing.T) {
	secret := "ya29.super-secret-token-value"
	if got := SanitizeToken(secret); strings.Contains(got, "super-secret") {
		t.Errorf("SanitizeToken leaked token content: %q", got)
	}
}

func TestErrNilOmitted(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Warn("something happened", Err(nil))
	if strings.Contains(buf.String(), KeyError) {
		t.Errorf("Err(nil) produced an error attribute: %s", buf.String())
	}

	buf.Reset()
	logger.Warn("something failed", Err(errors.New("boom")))
	if !strings.Contains(buf.String(), "error=boom") {
		t.Errorf("Err(err) missing from output: %s", buf.String())
	}
}

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&buf, false)
	logger.Debug("hidden")
	logger.Info("hidden too")
	if buf.Len() != 0 {
		t.Errorf("non-debug logger emitted info/debug output: %s", buf.String())
	}

	logger.Warn("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("warning missing from output: %s", buf.String())
	}

	buf.Reset()
	debugLogger := New(&buf, true)
	debugLogger.Debug("now visible", Operation("test"))
	if !strings.Contains(buf.String(), "operation=test") {
		t.Errorf("debug logger output missing attributes: %s", buf.String())
	}
}
