package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task-specific validation errors
var (
	ErrEmptyOwnerID  = errors.New("task owner ID cannot be empty")
	ErrEmptyTaskID   = errors.New("task ID cannot be empty")
	ErrEmptyTaskName = errors.New("task name cannot be empty")
	ErrTaskIDFormat  = errors.New("task ID cannot contain a path separator")
)

// TaskRecord is a user's task. (OwnerID, TaskID) identifies it and never
// changes after creation. AttachmentURL and ThumbnailURL are written by the
// upload path and the thumbnail pipeline respectively; a later upload with
// the same key overwrites them.
type TaskRecord struct {
	OwnerID       string     `json:"ownerId"`
	TaskID        string     `json:"taskId"`
	Name          string     `json:"name"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Done          bool       `json:"done"`
	CreatedAt     time.Time  `json:"createdAt"`
	AttachmentURL *string    `json:"attachmentUrl,omitempty"`
	ThumbnailURL  *string    `json:"thumbnailUrl,omitempty"`
}

// NewTaskRecord creates a pending task for ownerID with a fresh task ID.
// ownerID must already be the short owner identifier (see ShortOwnerID).
func NewTaskRecord(ownerID, name string, dueDate *time.Time) (*TaskRecord, error) {
	task := &TaskRecord{
		OwnerID:   ownerID,
		TaskID:    uuid.New().String(),
		Name:      name,
		DueDate:   dueDate,
		Done:      false,
		CreatedAt: time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the identity and required attributes of the record.
func (t *TaskRecord) Validate() error {
	if t.OwnerID == "" {
		return ErrEmptyOwnerID
	}
	if t.TaskID == "" {
		return ErrEmptyTaskID
	}
	// Both halves of the identity become segments of a storage key.
	if strings.Contains(t.OwnerID, KeySeparator) || strings.Contains(t.TaskID, KeySeparator) {
		return ErrTaskIDFormat
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyTaskName
	}
	return nil
}

// Key returns the storage key under which the task's attachment is uploaded.
func (t *TaskRecord) Key() StorageKey {
	return StorageKey{OwnerID: t.OwnerID, TaskID: t.TaskID}
}

// String implements fmt.Stringer for log output.
func (t *TaskRecord) String() string {
	return fmt.Sprintf("task(%s/%s)", t.OwnerID, t.TaskID)
}
