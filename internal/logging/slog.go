// Package logging provides structured logging helpers for mailmate.
//
// It centralizes attribute naming so log lines from the gateways, the
// assistant dispatcher and the HTTP layer stay queryable, and it sanitizes
// session keys and tokens before they reach the log output.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation   = "operation"
	KeyService     = "service"
	KeySessionHash = "session_hash"
	KeyDuration    = "duration"
	KeyStatus      = "status"
	KeyError       = "error"
	KeyTool        = "tool"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Setup installs a text handler on slog's default logger. Debug mode lowers
// the level and adds source locations.
func Setup(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	slog.SetDefault(slog.New(handler))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithService returns a logger with the service attribute set.
func WithService(logger *slog.Logger, service string) *slog.Logger {
	return logger.With(slog.String(KeyService, service))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Service returns a slog attribute for the service name.
func Service(svc string) slog.Attr {
	return slog.String(KeyService, svc)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from
// output, so Err(maybeNilErr) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeSession returns a hashed representation of a session key for
// logging. This allows correlation of log entries without exposing the key,
// which doubles as a bearer credential for the stored OAuth bundle.
func AnonymizeSession(key string) string {
	if key == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(key))
	return "session:" + hex.EncodeToString(hash[:8])
}

// SessionHash returns a slog attribute with the anonymized session key.
func SessionHash(key string) slog.Attr {
	return slog.String(KeySessionHash, AnonymizeSession(key))
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
