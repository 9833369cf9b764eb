package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed request fields.
	ErrValidation = errors.New("validation failed")
	// ErrProviderDisabled is returned by a provider that has no credentials.
	ErrProviderDisabled = errors.New("push provider not configured")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failed provider call for one batch.
type ProviderError struct {
	Batch  int
	Tokens int
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("push provider batch %d (%d tokens): %v", e.Batch, e.Tokens, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
