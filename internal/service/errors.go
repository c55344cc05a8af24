package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPrincipal is returned when a request carries no principal.
	// API layer should map this to HTTP 401 Unauthorized.
	ErrInvalidPrincipal = errors.New("principal cannot be empty")

	// ErrInvalidTaskInput indicates the caller supplied an unusable task
	// name or identifier. API layer should map this to HTTP 400 Bad Request.
	ErrInvalidTaskInput = errors.New("invalid task input")
)

// TaskServiceError is a custom error type for task service errors.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
func NewTaskServiceError(operation, message string, err error) *TaskServiceError {
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
