// Package telemetry builds the process logger and the trace provider.
package telemetry

import (
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

const redacted = "[REDACTED]"

// NewLogger returns a text logger on w at the given level. Every record
// carries runID. Attributes whose key looks like a secret are redacted, and
// so are string values carrying a bearer token.
func NewLogger(w io.Writer, level, runID string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if shouldRedactKey(a.Key) {
				return slog.String(a.Key, redacted)
			}
			if a.Value.Kind() == slog.KindString && redactValue(a.Value.String()) {
				return slog.String(a.Key, redacted)
			}
			return a
		},
	})
	return slog.New(handler).With("run_id", runID)
}

// NewRunID returns a time-ordered identifier for one invocation.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func shouldRedactKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	for _, token := range []string{"credential", "token", "secret", "password", "authorization", "api_key", "apikey", "bearer"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func redactValue(v string) bool {
	lower := strings.ToLower(v)
	return strings.Contains(lower, "bearer ") || strings.Contains(lower, "authorization:")
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
