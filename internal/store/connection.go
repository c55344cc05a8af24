package store

import (
	"context"
	"time"
)

// ConnectionStore persists live client connection identifiers.
// Every mutation is a single-row upsert or delete keyed by id.
type ConnectionStore interface {
	// Put inserts the connection, overwriting the timestamp if it already exists.
	Put(ctx context.Context, id string, createdAt time.Time) error

	// Delete removes the connection. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// ScanAll returns every stored connection id. The result is a point-in-time
	// view with no consistency guarantee against concurrent Put/Delete.
	ScanAll(ctx context.Context) ([]string, error)
}
