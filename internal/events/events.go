package events

import (
	"context"

	"github.com/phrazzld/todo-api/internal/domain"
)

// UploadHandler consumes upload event batches.
type UploadHandler interface {
	// HandleUploadBatch processes one batch. Handlers must tolerate
	// redelivery of the same batch. An error asks the broker to redeliver.
	HandleUploadBatch(ctx context.Context, batch *domain.UploadEventBatch) error
}

// UploadHandlerFunc adapts a function to UploadHandler.
type UploadHandlerFunc func(ctx context.Context, batch *domain.UploadEventBatch) error

// HandleUploadBatch calls f(ctx, batch).
func (f UploadHandlerFunc) HandleUploadBatch(ctx context.Context, batch *domain.UploadEventBatch) error {
	return f(ctx, batch)
}

// Emitter publishes upload batches to interested handlers.
type Emitter interface {
	// Emit delivers batch to every registered handler.
	Emit(ctx context.Context, batch *domain.UploadEventBatch) error
}
