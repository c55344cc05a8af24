package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/phrazzld/todo-api/internal/config"
	"github.com/phrazzld/todo-api/internal/domain"
	"google.golang.org/api/option"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ErrEmptyKey is returned for an empty object key.
var ErrEmptyKey = errors.New("object key cannot be empty")

// NewClient creates a storage client. When cfg.EmulatorHost is set the client
// talks to that emulator without credentials.
func NewClient(ctx context.Context, cfg config.StorageConfig) (*storage.Client, error) {
	var opts []option.ClientOption
	if cfg.EmulatorHost != "" {
		endpoint := strings.TrimRight(cfg.EmulatorHost, "/")
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "http://" + endpoint
		}
		opts = append(opts,
			option.WithEndpoint(endpoint+"/storage/v1/"),
			option.WithoutAuthentication(),
		)
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// Bucket is one GCS bucket. It implements thumbnail.BlobStore.
type Bucket struct {
	handle        *storage.BucketHandle
	name          string
	publicBaseURL string
	logger        *slog.Logger
}

// NewBucket returns a Bucket for name. publicBaseURL is the prefix used by
// PublicURL, e.g. "https://storage.googleapis.com".
func NewBucket(client *storage.Client, name, publicBaseURL string, logger *slog.Logger) (*Bucket, error) {
	if client == nil {
		return nil, errors.New("storage client cannot be nil")
	}
	if name == "" {
		return nil, errors.New("bucket name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bucket{
		handle:        client.Bucket(name),
		name:          name,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With(slog.String("component", "gcs_bucket"), slog.String("bucket", name)),
	}, nil
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// BaseURL returns the public URL prefix of objects in this bucket.
func (b *Bucket) BaseURL() string {
	return PublicURL(b.publicBaseURL, b.name, "")
}

// PublicURL returns the public URL of key in this bucket.
func (b *Bucket) PublicURL(key string) string {
	return PublicURL(b.publicBaseURL, b.name, key)
}

// PublicURL joins a base URL, bucket and key. Each key segment is
// path-escaped. An empty key yields the bucket prefix without a trailing
// slash.
func PublicURL(baseURL, bucket, key string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(bucket)
	if key = strings.TrimLeft(key, "/"); key != "" {
		u += "/" + domain.EscapeKeyPath(key)
	}
	return u
}

// Get reads the whole object stored under key.
func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	r, err := b.handle.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, b.name, key)
		}
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", b.name, key, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.name, key, err)
	}
	return data, nil
}

// Put writes data under key, replacing any existing object.
func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrEmptyKey
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		// Cancelling the context aborts the upload; Close would commit it.
		cancel()
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", b.name, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to commit gs://%s/%s: %w", b.name, key, err)
	}

	b.logger.Debug("object written", slog.String("key", key), slog.Int("bytes", len(data)))
	return nil
}

// SignedUploadURL returns a V4 signed URL that lets a client PUT an object
// under key until expiry elapses. The client must send the same
// Content-Type when contentType is non-empty.
func (b *Bucket) SignedUploadURL(key, contentType string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodPut,
		Expires: time.Now().Add(expiry),
	}
	if contentType != "" {
		opts.ContentType = contentType
	}

	signed, err := b.handle.SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload URL for gs://%s/%s: %w", b.name, key, err)
	}
	return signed, nil
}
