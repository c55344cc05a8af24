package store

import (
	"context"
	"time"

	"github.com/phrazzld/todo-api/internal/domain"
)

// TaskUpdate carries the user-editable attributes of a task record.
type TaskUpdate struct {
	Name    string
	DueDate *time.Time
	Done    bool
}

// TaskStore defines the interface for task record persistence.
// Records are keyed by (ownerID, taskID) where ownerID is the short owner
// identifier.
type TaskStore interface {
	// Create saves a new task record.
	// Returns ErrDuplicate if (ownerID, taskID) already exists.
	Create(ctx context.Context, task *domain.TaskRecord) error

	// Get retrieves one task record.
	// Returns ErrTaskNotFound if it does not exist.
	Get(ctx context.Context, ownerID, taskID string) (*domain.TaskRecord, error)

	// ListByOwner returns the owner's tasks, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.TaskRecord, error)

	// Update overwrites name, due date and completion flag.
	// Returns ErrTaskNotFound if the record does not exist.
	Update(ctx context.Context, ownerID, taskID string, update TaskUpdate) (*domain.TaskRecord, error)

	// Delete removes a task record. Deleting an absent record returns ErrTaskNotFound.
	Delete(ctx context.Context, ownerID, taskID string) error

	// UpdateAttachmentReference sets the attachment URL of a task.
	// Returns ErrTaskNotFound if the record does not exist.
	UpdateAttachmentReference(ctx context.Context, ownerID, taskID, url string) (*domain.TaskRecord, error)

	// UpdateThumbnailReference sets the thumbnail URL of a task and returns the
	// updated record. Last write wins. Returns ErrTaskNotFound if the record
	// does not exist (e.g. it was deleted while the pipeline was running).
	UpdateThumbnailReference(ctx context.Context, ownerID, taskID, url string) (*domain.TaskRecord, error)
}
