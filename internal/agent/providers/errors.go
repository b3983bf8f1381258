package providers

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError is a normalized failure from an LLM backend. It preserves
// the upstream status, error code, and request ID so callers can log and
// classify failures without depending on vendor SDK error types.
type ProviderError struct {
	// Provider identifies the backend, e.g. "anthropic".
	Provider string

	// Model is the model the failing request targeted.
	Model string

	// Status is the HTTP status code, when known.
	Status int

	// Code is the vendor error type, e.g. "rate_limit_error".
	Code string

	// Message is the human-readable upstream message.
	Message string

	// RequestID is the vendor request identifier for support escalation.
	RequestID string

	// Cause is the underlying error.
	Cause error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " (%s)", e.Model)
	}
	b.WriteString(": ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Cause != nil:
		b.WriteString(e.Cause.Error())
	default:
		b.WriteString("request failed")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request %s)", e.RequestID)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Retryable reports whether the failure is worth retrying: rate limits,
// server errors, and overloads are transient, auth and validation are not.
func (e *ProviderError) Retryable() bool {
	switch e.Status {
	case 429, 500, 502, 503, 504, 529:
		return true
	}
	switch e.Code {
	case "rate_limit_error", "overloaded_error", "api_error":
		return true
	}
	return false
}

// NewProviderError wraps err without any vendor metadata.
func NewProviderError(provider, model string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Cause: err}
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
