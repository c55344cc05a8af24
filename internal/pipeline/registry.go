package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/store"
)

// Clock returns the current time.
type Clock func() time.Time

// Registry records which client connections are believed to be live.
// It is safe for concurrent use; consistency is delegated to the store.
type Registry struct {
	store  store.ConnectionStore
	clock  Clock
	logger *slog.Logger
}

// NewRegistry creates a Registry backed by s. A nil clock uses time.Now in UTC.
func NewRegistry(s store.ConnectionStore, clock Clock, logger *slog.Logger) (*Registry, error) {
	if s == nil {
		return nil, errors.New("connection store cannot be nil")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		store:  s,
		clock:  clock,
		logger: logger.With(slog.String("component", "connection_registry")),
	}, nil
}

// Add registers id. Registering an existing id overwrites its timestamp.
func (r *Registry) Add(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidConnectionID
	}
	if err := r.store.Put(ctx, id, r.clock()); err != nil {
		return fmt.Errorf("failed to register connection %s: %w", id, err)
	}
	r.logger.Debug("connection registered", slog.String("connection_id", id))
	return nil
}

// Remove unregisters id. Removing an unknown id is a no-op.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidConnectionID
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to remove connection %s: %w", id, err)
	}
	r.logger.Debug("connection removed", slog.String("connection_id", id))
	return nil
}

// ListAll returns a point-in-time snapshot of every registered id. Concurrent
// Add and Remove calls may or may not be reflected.
func (r *Registry) ListAll(ctx context.Context) ([]string, error) {
	ids, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return ids, nil
}
