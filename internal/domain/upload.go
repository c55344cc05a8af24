package domain

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// KeySeparator separates storage key segments.
	KeySeparator = "/"
)

// UploadRecord is one file-upload notification. The key is not validated on
// decode; a malformed key fails only its own entry downstream.
type UploadRecord struct {
	BucketObjectKey string `json:"bucketObjectKey"`
}

// UploadEventBatch is one delivery from the event broker. Records carry no
// ordering guarantee and the same key may appear more than once.
type UploadEventBatch struct {
	Records []UploadRecord `json:"records" validate:"required,min=1"`
}

// Keys returns the object keys in the batch, in delivery order.
func (b *UploadEventBatch) Keys() []string {
	keys := make([]string, 0, len(b.Records))
	for _, r := range b.Records {
		keys = append(keys, r.BucketObjectKey)
	}
	return keys
}

// StorageKey identifies the task an uploaded object belongs to.
type StorageKey struct {
	OwnerID string
	TaskID  string
}

// ParseStorageKey splits an object key of the form
// "<shortOwnerId>/<taskId>[/...]". The first segment is the owner, the
// second the task; any further segments are ignored.
func ParseStorageKey(key string) (StorageKey, error) {
	parts := strings.Split(key, KeySeparator)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return StorageKey{}, fmt.Errorf("%w: %q", ErrInvalidStorageKey, key)
	}
	return StorageKey{OwnerID: parts[0], TaskID: parts[1]}, nil
}

// EscapeKeyPath escapes each segment of an object key for use as a URL path,
// keeping the separators.
func EscapeKeyPath(key string) string {
	segments := strings.Split(key, KeySeparator)
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, KeySeparator)
}

// String renders the raw upload key.
func (k StorageKey) String() string {
	return k.OwnerID + KeySeparator + k.TaskID
}

// NotificationPayload tells clients that the artifact under ImageID changed.
// Clients re-fetch; the payload never embeds content.
type NotificationPayload struct {
	ImageID string `json:"imageId"`
}
