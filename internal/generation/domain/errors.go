package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAllBackendsExhausted means every backend used its retry budget
	// without an accepted response.
	ErrAllBackendsExhausted = errors.New("all generation backends exhausted")

	ErrResponseTooShort   = errors.New("response below minimum length")
	ErrCircuitOpen        = errors.New("backend circuit open")
	ErrBackendSafety      = errors.New("backend rejected content for safety")
	ErrBackendAuth        = errors.New("backend rejected credentials")
	ErrBackendRateLimited = errors.New("backend rate limited")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrNoBackends         = errors.New("no generation backends configured")
)

// ExhaustedError reports a terminal pipeline failure with the error of the
// last attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("%s after %d attempts", ErrAllBackendsExhausted, e.Attempts)
	}
	return fmt.Sprintf("%s after %d attempts: %v", ErrAllBackendsExhausted, e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last cause to errors.Is.
func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrAllBackendsExhausted}
	}
	return []error{ErrAllBackendsExhausted, e.Last}
}
