package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/todo-api/internal/domain"
)

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	Name    string     `json:"name"              validate:"required,max=255"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/{taskId}. All three
// fields are written; an omitted dueDate clears it.
type UpdateTaskRequest struct {
	Name    string     `json:"name"              validate:"required,max=255"`
	DueDate *time.Time `json:"dueDate,omitempty"`
	Done    *bool      `json:"done"              validate:"required"`
}

// AttachmentURLRequest is the optional body of POST /api/tasks/{taskId}/attachment.
type AttachmentURLRequest struct {
	ContentType string `json:"contentType,omitempty" validate:"omitempty,max=127"`
}

// TaskResponse is the wire form of a task.
type TaskResponse struct {
	TaskID        string     `json:"taskId"`
	Name          string     `json:"name"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	Done          bool       `json:"done"`
	CreatedAt     time.Time  `json:"createdAt"`
	AttachmentURL string     `json:"attachmentUrl,omitempty"`
	ThumbnailURL  string     `json:"thumbnailUrl,omitempty"`
}

// TaskListResponse wraps GET /api/tasks.
type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
}

// AttachmentURLResponse carries a signed upload URL.
type AttachmentURLResponse struct {
	UploadURL     string    `json:"uploadUrl"`
	AttachmentURL string    `json:"attachmentUrl"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// UploadBatchResponse summarizes an accepted upload batch.
type UploadBatchResponse struct {
	Accepted int      `json:"accepted"`
	Keys     []string `json:"keys"`
}

func taskToResponse(t *domain.TaskRecord) TaskResponse {
	resp := TaskResponse{
		TaskID:    t.TaskID,
		Name:      t.Name,
		DueDate:   t.DueDate,
		Done:      t.Done,
		CreatedAt: t.CreatedAt,
	}
	if t.AttachmentURL != nil {
		resp.AttachmentURL = *t.AttachmentURL
	}
	if t.ThumbnailURL != nil {
		resp.ThumbnailURL = *t.ThumbnailURL
	}
	return resp
}

// PubSubPushRequest is the envelope a Pub/Sub push subscription posts for a
// Cloud Storage notification.
type PubSubPushRequest struct {
	Message struct {
		Attributes map[string]string `json:"attributes"`
		// Data is the base64 encoded object resource; only "name" is read.
		Data      string `json:"data,omitempty"`
		MessageID string `json:"messageId,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription,omitempty"`
}

// Cloud Storage notification attributes.
const (
	attrEventType       = "eventType"
	attrBucketID        = "bucketId"
	attrObjectID        = "objectId"
	eventObjectFinalize = "OBJECT_FINALIZE"
)

// isPubSub reports whether the envelope looks like a Pub/Sub push.
func (p *PubSubPushRequest) isPubSub() bool {
	return p.Message.Attributes != nil || p.Message.Data != ""
}

// objectKey returns the uploaded object's key, preferring the objectId
// attribute and falling back to the name inside the data payload.
func (p *PubSubPushRequest) objectKey() (string, error) {
	if key := p.Message.Attributes[attrObjectID]; key != "" {
		return key, nil
	}
	if p.Message.Data == "" {
		return "", fmt.Errorf("%w: notification has no object id", domain.ErrInvalidStorageKey)
	}
	raw, err := base64.StdEncoding.DecodeString(p.Message.Data)
	if err != nil {
		return "", fmt.Errorf("%w: undecodable notification data", domain.ErrValidation)
	}
	var object struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &object); err != nil || object.Name == "" {
		return "", fmt.Errorf("%w: notification data has no object name", domain.ErrInvalidStorageKey)
	}
	return object.Name, nil
}
