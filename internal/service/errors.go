package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoFiles is returned when an ingest request carries no recognized document.
	ErrNoFiles = errors.New("no recognized documents uploaded")
	// ErrNoText is returned when no chunk could be produced from the uploaded documents.
	ErrNoText = errors.New("no text extracted from documents")
	// ErrIndexing is returned when writing to the vector store fails.
	ErrIndexing = errors.New("indexing failed")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any ValidationError with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
