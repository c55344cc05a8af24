// Package service contains the application use cases that sit between the
// HTTP handlers and the stores.
//
// Services receive their dependencies through constructor injection and
// depend only on interfaces from internal/store and on small local
// interfaces such as AttachmentSigner, never on a concrete database or
// bucket client.
//
// Errors follow one convention throughout: expected conditions are sentinel
// errors (ErrInvalidPrincipal, or store.ErrTaskNotFound passed through a
// TaskServiceError) that callers test with errors.Is, and the API layer maps
// them to HTTP status codes.
package service
