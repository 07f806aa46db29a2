// Package errors consolidates error definitions for the scope engine.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
// - A validation error collector for config checking
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Transport errors. All are non-fatal; the channel transitions to
	// Reconnecting and retries until closed.
	ErrTransport         = errors.New("transport error")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrHandshakeFailed   = errors.New("subscribe handshake failed")
	ErrTransportDisabled = errors.New("transport unavailable")
	ErrTimeout           = errors.New("timeout")

	// Ingestion errors. Isolated to the offending frame or sample;
	// the stream continues.
	ErrDecode            = errors.New("frame decode failed")
	ErrUnknownEventKind  = errors.New("unknown event kind")
	ErrOrderingViolation = errors.New("out-of-order sample")

	// Historical load errors. Surfaced to the caller as recoverable;
	// retry policy belongs to the caller.
	ErrHistoricalLoad = errors.New("historical load failed")

	// Lifecycle errors.
	ErrEngineClosed      = errors.New("engine is closed")
	ErrConnClosed        = errors.New("connection is closed")
	ErrAlreadyRunning    = errors.New("already running")
	ErrInvalidTransition = errors.New("invalid state transition")

	// Validation errors.
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrMissingField    = errors.New("missing required field")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidWindow   = errors.New("invalid window")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsTransport returns true if err is a transport error.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrHandshakeFailed) ||
		errors.Is(err, ErrTimeout)
}

// IsDecode returns true if err is a frame decode error.
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrUnknownEventKind)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidWindow)
}

// IsRetriable returns true if the error is potentially retriable.
// Historical load failures are retriable by the caller; decode and
// ordering failures are not, since replaying the same frame cannot
// succeed.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrHistoricalLoad) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed)
}

// IsClosed returns true if err indicates a closed engine or connection.
func IsClosed(err error) bool {
	return errors.Is(err, ErrEngineClosed) ||
		errors.Is(err, ErrConnClosed)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
