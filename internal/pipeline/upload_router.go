package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/platform/logger"
	"github.com/phrazzld/todo-api/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight entries when none is configured.
const DefaultConcurrency = 8

// Transformer derives a thumbnail from a raw upload and returns the key it
// was written under.
type Transformer interface {
	Transform(ctx context.Context, key string) (string, error)
}

// Entry processing stages, used to label failures.
const (
	StageParse     = "parse"
	StageTransform = "transform"
	StageRecord    = "update_record"
)

// EntryFailure describes one record that could not be processed.
type EntryFailure struct {
	Key   string
	Stage string
	Err   error
}

// BatchResult summarizes one UploadRouter invocation.
type BatchResult struct {
	// Thumbnails maps each successfully processed key to its thumbnail URL.
	Thumbnails map[string]string
	Failures   []EntryFailure
}

// Succeeded reports how many entries were fully processed.
func (r *BatchResult) Succeeded() int { return len(r.Thumbnails) }

// Failed reports how many entries failed.
func (r *BatchResult) Failed() int { return len(r.Failures) }

// UploadRouterConfig configures an UploadRouter.
type UploadRouterConfig struct {
	// ThumbnailBaseURL prefixes derived keys to form the stored thumbnail URL,
	// e.g. "https://storage.googleapis.com/todo-thumbnails".
	ThumbnailBaseURL string
	// Concurrency bounds the entries processed at once; zero selects
	// DefaultConcurrency.
	Concurrency int
}

// UploadRouter reacts to upload batches by producing a thumbnail for every
// entry and recording its URL on the owning task.
type UploadRouter struct {
	transformer Transformer
	tasks       store.TaskStore
	baseURL     string
	concurrency int
	logger      *slog.Logger
}

// NewUploadRouter creates an UploadRouter.
func NewUploadRouter(
	transformer Transformer,
	tasks store.TaskStore,
	cfg UploadRouterConfig,
	logger *slog.Logger,
) (*UploadRouter, error) {
	if transformer == nil {
		return nil, errors.New("transformer cannot be nil")
	}
	if tasks == nil {
		return nil, errors.New("task store cannot be nil")
	}
	if cfg.ThumbnailBaseURL == "" {
		return nil, errors.New("thumbnail base URL cannot be empty")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &UploadRouter{
		transformer: transformer,
		tasks:       tasks,
		baseURL:     strings.TrimRight(cfg.ThumbnailBaseURL, "/"),
		concurrency: cfg.Concurrency,
		logger:      logger.With(slog.String("component", "upload_router")),
	}, nil
}

// HandleUploadBatch implements events.UploadHandler. Per-entry failures are
// logged and never surface as an error.
func (u *UploadRouter) HandleUploadBatch(ctx context.Context, batch *domain.UploadEventBatch) error {
	_, err := u.Route(ctx, batch)
	return err
}

// Route processes every record in batch and reports what happened. Entries
// are independent and may complete in any order. The only error returned
// wraps the context error when ctx is done before every entry has run.
func (u *UploadRouter) Route(ctx context.Context, batch *domain.UploadEventBatch) (*BatchResult, error) {
	result := &BatchResult{Thumbnails: make(map[string]string)}
	if batch == nil || len(batch.Records) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	log := logger.FromContextOrDefault(ctx, u.logger)
	start := time.Now()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(u.concurrency)

	for _, record := range batch.Records {
		key := record.BucketObjectKey
		g.Go(func() error {
			url, stage, err := u.processEntry(ctx, key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, EntryFailure{Key: key, Stage: stage, Err: err})
				log.Error("upload entry failed",
					slog.String("key", key),
					slog.String("stage", stage),
					slog.Any("error", err))
				return nil
			}
			result.Thumbnails[key] = url
			return nil
		})
	}
	_ = g.Wait()

	log.Info("upload batch processed",
		slog.Int("records", len(batch.Records)),
		slog.Int("succeeded", result.Succeeded()),
		slog.Int("failed", result.Failed()),
		slog.Duration("duration", time.Since(start)))

	// Entries cut short by the deadline need the batch redelivered.
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("upload batch interrupted: %w", err)
	}
	return result, nil
}

// processEntry handles one key and returns the recorded thumbnail URL, or the
// failing stage and its error.
func (u *UploadRouter) processEntry(ctx context.Context, key string) (string, string, error) {
	sk, err := domain.ParseStorageKey(key)
	if err != nil {
		return "", StageParse, err
	}

	derivedKey, err := u.transformer.Transform(ctx, key)
	if err != nil {
		return "", StageTransform, err
	}

	url := u.baseURL + "/" + domain.EscapeKeyPath(derivedKey)
	if _, err := u.tasks.UpdateThumbnailReference(ctx, sk.OwnerID, sk.TaskID, url); err != nil {
		if store.IsNotFoundError(err) {
			err = fmt.Errorf("task %s no longer exists: %w", sk, err)
		}
		return "", StageRecord, err
	}

	return url, "", nil
}
