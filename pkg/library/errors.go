package library

import "errors"

var (
	// ErrValidation marks input rejected at the add/edit boundary.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when an edit targets an unknown book id.
	ErrNotFound = errors.New("book not found")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func requiredError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: field + " required"}
}
