package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/todo-api/internal/domain"
	"golang.org/x/sync/errgroup"
)

type registration struct {
	name    string
	handler UploadHandler
}

// InMemoryEmitter is an Emitter that keeps its handlers in memory and
// delivers each batch to all of them concurrently.
type InMemoryEmitter struct {
	handlers []registration
	mu       sync.RWMutex
	logger   *slog.Logger
}

var _ Emitter = (*InMemoryEmitter)(nil)

// NewInMemoryEmitter creates an emitter with no handlers.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEmitter{
		logger: logger.With("component", "in_memory_emitter"),
	}
}

// RegisterHandler adds a handler under name, which is used in logs.
func (e *InMemoryEmitter) RegisterHandler(name string, handler UploadHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, registration{name: name, handler: handler})
	e.logger.Debug("registered upload handler", "handler", name, "handler_count", len(e.handlers))
}

// HandlerCount returns the number of registered handlers.
func (e *InMemoryEmitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

// Emit delivers batch to every registered handler concurrently and waits for
// all of them. Every handler sees the batch even if another fails; the error
// of the first failing handler in registration order is returned.
func (e *InMemoryEmitter) Emit(ctx context.Context, batch *domain.UploadEventBatch) error {
	e.mu.RLock()
	handlers := make([]registration, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	records := 0
	if batch != nil {
		records = len(batch.Records)
	}

	if len(handlers) == 0 {
		e.logger.Warn("no handlers registered for upload batch", "records", records)
		return nil
	}

	e.logger.Debug("emitting upload batch", "records", records, "handler_count", len(handlers))

	// Handler errors are kept per slot instead of returned to the group, so
	// one failure never cancels or hides another.
	errs := make([]error, len(handlers))
	var g errgroup.Group
	for i, reg := range handlers {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("handler %s panicked: %v", reg.name, r)
				}
			}()
			errs[i] = reg.handler.HandleUploadBatch(ctx, batch)
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		e.logger.Error("handler failed to process upload batch",
			"error", err,
			"handler", handlers[i].name,
			"records", records)
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
