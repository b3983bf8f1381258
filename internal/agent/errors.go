package agent

import "errors"

// Sentinel errors surfaced by the session registry and generation driver.
var (
	// ErrSessionBusy indicates the user already has a turn in flight.
	ErrSessionBusy = errors.New("session busy: a previous request is still running")

	// ErrMaxSteps indicates the generation loop hit its step ceiling
	// without the model producing a final answer.
	ErrMaxSteps = errors.New("maximum generation steps reached")

	// ErrLoginTimeout indicates the user did not complete authorization
	// within the allowed window.
	ErrLoginTimeout = errors.New("login not completed in time")
)

// ErrorMessage extracts the most specific human-readable message from an
// error chain. It walks wrapped errors to the innermost cause and prefers
// its message, falling back outward when inner messages are empty.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		if m := inner.Error(); m != "" {
			msg = m
		}
	}
	return msg
}
