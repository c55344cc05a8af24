package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStorageKey is returned when an object key does not follow
	// the "<shortOwnerId>/<taskId>" convention.
	ErrInvalidStorageKey = errors.New("invalid storage key")

	// ErrInvalidConnectionID is returned for an empty connection identifier.
	ErrInvalidConnectionID = errors.New("invalid connection ID")

	// ErrEmptyUploadBatch is returned when a batch carries no records.
	ErrEmptyUploadBatch = errors.New("upload batch has no records")
)
