// Package apierr defines the error taxonomy shared by the gateways, the
// assistant dispatcher and the HTTP layer. Gateways return these errors,
// the HTTP layer maps them to status codes.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized indicates that no credential bundle exists for the session
// key, or that the request carried no session cookie at all.
var ErrUnauthorized = errors.New("unauthorized: no credentials for session")

// ValidationError describes a malformed request body. Field names the
// offending field so the client error message can point at it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validation creates a ValidationError for a missing or malformed field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamError wraps a failure from the mail/calendar provider or the LLM
// provider. The original error message is preserved for the caller.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError for the named provider.
// Returns nil if err is nil.
func Upstream(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Provider: provider, Err: err}
}

// ToolResolutionError indicates the routing LLM requested a tool that is not
// in the registry. This is a provider/registry mismatch bug and aborts the
// turn rather than being skipped.
type ToolResolutionError struct {
	Name string
}

func (e *ToolResolutionError) Error() string {
	return fmt.Sprintf("tool %q not found in registry", e.Name)
}

// StatusCode maps an error to the HTTP status code it should surface as.
func StatusCode(err error) int {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &ve):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
