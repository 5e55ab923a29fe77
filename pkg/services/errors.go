// Package services provides the console's application services and
// standardized error types for the web boundary.
package services

import (
	"errors"
	"fmt"

	"github.com/opsdeck/opsdeck/pkg/conversation"
	"github.com/opsdeck/opsdeck/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest      = errors.New("invalid request")
	ErrEmptyMessage        = errors.New("message text cannot be empty")
	ErrActionNotExecutable = errors.New("env actions cannot be executed")

	// Not Found (404).
	ErrActionNotFound  = persistence.ErrActionNotFound
	ErrSessionNotFound = conversation.ErrSessionNotFound

	// Business Logic Conflicts (409 Conflict).
	ErrActionAlreadyExists = persistence.ErrActionAlreadyExists
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrActionNotExecutable)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrActionNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrActionAlreadyExists)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
