package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider is returned when a provider identifier is not part
	// of the supported set. Fatal to the requested construction.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrProviderUnavailable signals that an override targets a provider
	// without a credential. Recoverable: the turn falls back to the default.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSessionStart is returned when a session cannot begin, e.g. no
	// provider has a credential configured.
	ErrSessionStart = errors.New("session start failed")

	// ErrInterrupted is reported by the presentation layer when the user
	// aborts input (Ctrl+C / Ctrl+D). It ends the session gracefully.
	ErrInterrupted = errors.New("interrupted")
)

// TurnError wraps an unexpected failure inside the per-turn protocol. The
// chat loop logs and reports it, then continues with the next turn.
type TurnError struct {
	Input string
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed: %v", e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// PanicError converts a recovered panic value into an error.
func PanicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
