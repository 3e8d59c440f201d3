package game

import (
	"errors"
	"fmt"
)

// Error categories surfaced to clients. Match with errors.Is.
var (
	ErrInvalidIntent = errors.New("invalid intent")
	ErrNotFound      = errors.New("not found")
)

// IntentError carries a user-facing message for a rejected intent.
// Nothing is mutated when one is returned.
type IntentError struct {
	Kind error
	Msg  string
}

func (e *IntentError) Error() string { return e.Msg }
func (e *IntentError) Unwrap() error { return e.Kind }

// Invalid builds an ErrInvalidIntent with a formatted message.
func Invalid(format string, args ...any) error {
	return &IntentError{Kind: ErrInvalidIntent, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return &IntentError{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Message returns the text to show a client for err.
func Message(err error) string {
	var ie *IntentError
	if errors.As(err, &ie) {
		return ie.Msg
	}
	return "something went wrong"
}
