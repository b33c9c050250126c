package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies application errors so callers can map each kind
// to a precise response without string matching.
type ErrorType string

const (
	// ErrorTypeNotFound indicates the appointment does not exist
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeForbidden indicates the actor is not permitted to perform the action
	ErrorTypeForbidden ErrorType = "FORBIDDEN"

	// ErrorTypeInvalidTransition indicates the action is illegal for the current status
	ErrorTypeInvalidTransition ErrorType = "INVALID_TRANSITION"

	// ErrorTypeSlotConflict indicates the veterinarian already holds an active
	// appointment at the requested slot
	ErrorTypeSlotConflict ErrorType = "SLOT_CONFLICT"

	// ErrorTypeValidation indicates invalid or missing input for the operation
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeAlreadyRated indicates a completed appointment was already rated
	ErrorTypeAlreadyRated ErrorType = "ALREADY_RATED"

	// ErrorTypeLockTimeout indicates a bounded lock wait expired; retryable
	ErrorTypeLockTimeout ErrorType = "LOCK_TIMEOUT"

	// ErrorTypeConflict indicates the record changed underneath the caller
	// (stale optimistic version); re-read and retry the decision
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeStorageUnavailable indicates a persistence-layer failure
	ErrorTypeStorageUnavailable ErrorType = "STORAGE_UNAVAILABLE"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an external collaborator
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same call can succeed without
// the caller changing its input. Only lock timeouts qualify; a slot
// conflict will fail again until a different slot is picked.
func (e *AppError) Retryable() bool {
	return e.Type == ErrorTypeLockTimeout
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// TypeOf returns the ErrorType of err, or ErrorTypeInternal for
// untyped errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Message: message,
	}
}

// NewInvalidTransitionError creates a new invalid transition error
func NewInvalidTransitionError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidTransition,
		Message: message,
	}
}

// NewSlotConflictError creates a new slot conflict error. The message
// must name the occupied slot so the caller can offer an alternative.
func NewSlotConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeSlotConflict,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewAlreadyRatedError creates a new already rated error
func NewAlreadyRatedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeAlreadyRated,
		Message: message,
	}
}

// NewLockTimeoutError creates a new lock timeout error
func NewLockTimeoutError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeLockTimeout,
		Message: message,
	}
}

// NewConflictError creates a new stale-version conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewStorageUnavailableError creates a new storage unavailable error
func NewStorageUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeStorageUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external collaborator error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}
