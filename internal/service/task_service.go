package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/platform/logger"
	"github.com/phrazzld/todo-api/internal/store"
)

// AttachmentSigner issues upload URLs for the attachments bucket.
// *gcs.Bucket satisfies it.
type AttachmentSigner interface {
	SignedUploadURL(key, contentType string, expiry time.Duration) (string, error)
	PublicURL(key string) string
}

// CreateTaskParams holds the user-supplied attributes of a new task.
type CreateTaskParams struct {
	Name    string
	DueDate *time.Time
}

// AttachmentUpload is returned by AttachmentUploadURL.
type AttachmentUpload struct {
	// UploadURL accepts a single PUT of the attachment bytes until it expires.
	UploadURL string
	// AttachmentURL is the public location recorded on the task.
	AttachmentURL string
	// Key is the storage key the upload lands under.
	Key string
	// ExpiresAt is when UploadURL stops being accepted.
	ExpiresAt time.Time
}

// TaskService provides task-related operations for an authenticated principal.
// Every method scopes its work to domain.ShortOwnerID(principal).
type TaskService interface {
	// ListTasks returns the principal's tasks, newest first.
	ListTasks(ctx context.Context, principal string) ([]*domain.TaskRecord, error)

	// CreateTask creates a pending task with a fresh task ID.
	CreateTask(ctx context.Context, principal string, params CreateTaskParams) (*domain.TaskRecord, error)

	// UpdateTask overwrites name, due date and completion flag.
	UpdateTask(ctx context.Context, principal, taskID string, update store.TaskUpdate) (*domain.TaskRecord, error)

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, principal, taskID string) error

	// AttachmentUploadURL signs an upload URL for the task's attachment and
	// records where the attachment will be publicly readable.
	AttachmentUploadURL(ctx context.Context, principal, taskID, contentType string) (*AttachmentUpload, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks        store.TaskStore
	signer       AttachmentSigner
	uploadExpiry time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	signer AttachmentSigner,
	uploadExpiry time.Duration,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, fmt.Errorf("%w: task store cannot be nil", domain.ErrValidation)
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: attachment signer cannot be nil", domain.ErrValidation)
	}
	if uploadExpiry <= 0 {
		return nil, fmt.Errorf("%w: upload expiry must be positive", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:        tasks,
		signer:       signer,
		uploadExpiry: uploadExpiry,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "task_service")),
	}, nil
}

// ownerFor resolves the partition key for a principal.
func ownerFor(operation, principal string) (string, error) {
	owner := domain.ShortOwnerID(strings.TrimSpace(principal))
	if owner == "" {
		return "", NewTaskServiceError(operation, "missing principal", ErrInvalidPrincipal)
	}
	return owner, nil
}

func validTaskID(operation, taskID string) error {
	if taskID == "" || strings.Contains(taskID, domain.KeySeparator) {
		return NewTaskServiceError(operation, "invalid task ID", ErrInvalidTaskInput)
	}
	return nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(ctx context.Context, principal string) ([]*domain.TaskRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	owner, err := ownerFor("list_tasks", principal)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListByOwner(ctx, owner)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("owner_id", owner))
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}

	log.Debug("listed tasks", slog.String("owner_id", owner), slog.Int("count", len(tasks)))
	return tasks, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	principal string,
	params CreateTaskParams,
) (*domain.TaskRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	owner, err := ownerFor("create_task", principal)
	if err != nil {
		return nil, err
	}

	task, err := domain.NewTaskRecord(owner, params.Name, params.DueDate)
	if err != nil {
		return nil, NewTaskServiceError("create_task", err.Error(), ErrInvalidTaskInput)
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		log.Error("failed to save task",
			slog.String("error", err.Error()),
			slog.String("task", task.String()))
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created", slog.String("task", task.String()))
	return task, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	principal, taskID string,
	update store.TaskUpdate,
) (*domain.TaskRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	owner, err := ownerFor("update_task", principal)
	if err != nil {
		return nil, err
	}
	if err := validTaskID("update_task", taskID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(update.Name) == "" {
		return nil, NewTaskServiceError("update_task", domain.ErrEmptyTaskName.Error(), ErrInvalidTaskInput)
	}

	task, err := s.tasks.Update(ctx, owner, taskID, update)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("task not found for update",
				slog.String("owner_id", owner),
				slog.String("task_id", taskID))
			return nil, NewTaskServiceError("update_task", "task not found", store.ErrTaskNotFound)
		}
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("owner_id", owner),
			slog.String("task_id", taskID))
		return nil, NewTaskServiceError("update_task", "failed to update task", err)
	}

	log.Info("task updated", slog.String("task", task.String()), slog.Bool("done", task.Done))
	return task, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, principal, taskID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	owner, err := ownerFor("delete_task", principal)
	if err != nil {
		return err
	}
	if err := validTaskID("delete_task", taskID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, owner, taskID); err != nil {
		if store.IsNotFoundError(err) {
			return NewTaskServiceError("delete_task", "task not found", store.ErrTaskNotFound)
		}
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("owner_id", owner),
			slog.String("task_id", taskID))
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	log.Info("task deleted", slog.String("owner_id", owner), slog.String("task_id", taskID))
	return nil
}

// AttachmentUploadURL implements TaskService.AttachmentUploadURL
//
// The attachment reference is written before the client uploads anything;
// the upload itself is what later triggers the thumbnail pipeline.
func (s *taskServiceImpl) AttachmentUploadURL(
	ctx context.Context,
	principal, taskID, contentType string,
) (*AttachmentUpload, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	owner, err := ownerFor("attachment_upload_url", principal)
	if err != nil {
		return nil, err
	}
	if err := validTaskID("attachment_upload_url", taskID); err != nil {
		return nil, err
	}

	key := domain.StorageKey{OwnerID: owner, TaskID: taskID}.String()
	expiresAt := s.now().Add(s.uploadExpiry)

	uploadURL, err := s.signer.SignedUploadURL(key, contentType, s.uploadExpiry)
	if err != nil {
		log.Error("failed to sign upload URL",
			slog.String("error", err.Error()),
			slog.String("key", key))
		return nil, NewTaskServiceError("attachment_upload_url", "failed to sign upload URL", err)
	}

	attachmentURL := s.signer.PublicURL(key)
	if _, err := s.tasks.UpdateAttachmentReference(ctx, owner, taskID, attachmentURL); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewTaskServiceError("attachment_upload_url", "task not found", store.ErrTaskNotFound)
		}
		log.Error("failed to record attachment URL",
			slog.String("error", err.Error()),
			slog.String("key", key))
		return nil, NewTaskServiceError("attachment_upload_url", "failed to record attachment URL", err)
	}

	log.Info("attachment upload URL issued",
		slog.String("key", key),
		slog.Time("expires_at", expiresAt))

	return &AttachmentUpload{
		UploadURL:     uploadURL,
		AttachmentURL: attachmentURL,
		Key:           key,
		ExpiresAt:     expiresAt,
	}, nil
}
