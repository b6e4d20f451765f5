package common

import (
	"errors"
	"fmt"
)

// Domain errors - use errors.Is() to check
var (
	// Generic errors
	ErrInternal   = errors.New("internal error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrBadRequest = errors.New("bad request")
	ErrClosed     = errors.New("closed")

	// Analysis error taxonomy
	ErrInput      = errors.New("input error")
	ErrCapability = errors.New("capability error")
	ErrSystem     = errors.New("system error")

	// Resource-specific errors
	ErrJobNotFound   = fmt.Errorf("job %w", ErrNotFound)
	ErrAudioNotFound = fmt.Errorf("audio %w", ErrNotFound)

	// Validation errors
	ErrValidation = errors.New("validation error")
)

// ValidationError represents a validation error with field details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is implements errors.Is for ValidationError
func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// WrapNotFound wraps an error as a not found error with context
func WrapNotFound(resource string, err error) error {
	return fmt.Errorf("%s: %w", resource, errors.Join(ErrNotFound, err))
}

// WrapInternal wraps an error as an internal error with context
func WrapInternal(operation string, err error) error {
	return fmt.Errorf("%s: %w", operation, errors.Join(ErrInternal, err))
}

// InputErrorf builds an error classified as ErrInput.
func InputErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

// WrapCapability classifies err as a failed external capability call.
func WrapCapability(capability string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCapability, capability, err)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInput checks if error is a malformed or empty input error
func IsInput(err error) bool {
	return errors.Is(err, ErrInput)
}

// IsCapability checks if error came from an external capability
func IsCapability(err error) bool {
	return errors.Is(err, ErrCapability)
}
