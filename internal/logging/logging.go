// Package logging provides shared slog helpers and attribute keys so log
// output stays consistent across the codebase.
package logging

import (
	"fmt"
	"io"
	"log/slog"
)

// Common log attribute keys.
const (
	KeyOperation = "operation"
	KeyRemoteID  = "remote_id"
	KeyList      = "list"
	KeyTitle     = "title"
	KeyError     = "error"
	KeyDryRun    = "dry_run"
)

// New returns a text logger writing to w. With debug set, all levels are
// emitted; otherwise only warnings and errors, keeping normal CLI runs
// quiet.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// RemoteID returns a slog attribute for a remote task id.
func RemoteID(id string) slog.Attr {
	return slog.String(KeyRemoteID, id)
}

// Title returns a slog attribute for a task title.
func Title(title string) slog.Attr {
	return slog.String(KeyTitle, title)
}

// DryRun returns a slog attribute marking intended-only operations.
func DryRun(on bool) slog.Attr {
	return slog.Bool(KeyDryRun, on)
}

// Err returns a slog attribute for an error. A nil err yields an empty
// group that slog omits from output, so Err(maybeNil) is always safe.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a masked version of a token for logging. Only the
// length is exposed; even partial token prefixes can aid attacks.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
