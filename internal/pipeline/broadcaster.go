package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/platform/logger"
	"golang.org/x/sync/errgroup"
)

// Gateway delivers a payload to one client connection.
type Gateway interface {
	PushTo(ctx context.Context, connectionID string, payload []byte) domain.PushResult
}

// ConnectionRegistry is the subset of Registry the Broadcaster depends on.
type ConnectionRegistry interface {
	ListAll(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, id string) error
}

// BroadcastResult summarizes one Broadcaster invocation. Counts are per
// (entry, connection) push.
type BroadcastResult struct {
	Delivered int
	Gone      int
	Failed    int
	// Removed lists the connections pruned from the registry, sorted.
	Removed []string
}

// Broadcaster notifies every registered connection about each uploaded key.
type Broadcaster struct {
	registry    ConnectionRegistry
	gateway     Gateway
	concurrency int
	logger      *slog.Logger
}

// NewBroadcaster creates a Broadcaster. A concurrency of zero selects
// DefaultConcurrency.
func NewBroadcaster(
	registry ConnectionRegistry,
	gateway Gateway,
	concurrency int,
	logger *slog.Logger,
) (*Broadcaster, error) {
	if registry == nil {
		return nil, errors.New("connection registry cannot be nil")
	}
	if gateway == nil {
		return nil, errors.New("gateway cannot be nil")
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Broadcaster{
		registry:    registry,
		gateway:     gateway,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "broadcaster")),
	}, nil
}

// HandleUploadBatch implements events.UploadHandler.
func (b *Broadcaster) HandleUploadBatch(ctx context.Context, batch *domain.UploadEventBatch) error {
	_, err := b.Broadcast(ctx, batch)
	return err
}

// Broadcast pushes {"imageId": key} for every record in batch to every
// connection in a single registry snapshot. A connection reported gone is
// removed from the registry and skipped for the remaining records. Transport
// errors are logged and the connection is kept. An error is returned when
// the snapshot fails or ctx ends before every record has been pushed.
func (b *Broadcaster) Broadcast(ctx context.Context, batch *domain.UploadEventBatch) (*BroadcastResult, error) {
	result := &BroadcastResult{}
	if batch == nil || len(batch.Records) == 0 {
		return result, nil
	}

	log := logger.FromContextOrDefault(ctx, b.logger)
	start := time.Now()

	connections, err := b.registry.ListAll(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to snapshot connections: %w", err)
	}
	if len(connections) == 0 {
		log.Debug("no connections to notify", slog.Int("records", len(batch.Records)))
		return result, nil
	}

	gone := make(map[string]struct{})
	var mu sync.Mutex

	for _, record := range batch.Records {
		if ctx.Err() != nil {
			break
		}

		key := record.BucketObjectKey
		payload, err := json.Marshal(domain.NotificationPayload{ImageID: key})
		if err != nil {
			// Unreachable for a struct of strings.
			log.Error("failed to encode notification", slog.String("key", key), slog.Any("error", err))
			continue
		}

		var g errgroup.Group
		g.SetLimit(b.concurrency)

		for _, id := range connections {
			mu.Lock()
			_, dead := gone[id]
			mu.Unlock()
			if dead {
				continue
			}

			g.Go(func() error {
				res := b.gateway.PushTo(ctx, id, payload)
				switch res.Status {
				case domain.PushOK:
					mu.Lock()
					result.Delivered++
					mu.Unlock()
				case domain.PushGone:
					mu.Lock()
					result.Gone++
					gone[id] = struct{}{}
					mu.Unlock()
					if err := b.registry.Remove(ctx, id); err != nil {
						log.Error("failed to remove gone connection",
							slog.String("connection_id", id),
							slog.Any("error", err))
						return nil
					}
					mu.Lock()
					result.Removed = append(result.Removed, id)
					mu.Unlock()
				case domain.PushTransportError:
					mu.Lock()
					result.Failed++
					mu.Unlock()
					log.Warn("push failed",
						slog.String("connection_id", id),
						slog.String("key", key),
						slog.Any("error", res.Err))
				default:
					mu.Lock()
					result.Failed++
					mu.Unlock()
					log.Error("unknown push status",
						slog.String("connection_id", id),
						slog.String("status", res.Status.String()))
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	sort.Strings(result.Removed)

	log.Info("upload batch broadcast",
		slog.Int("records", len(batch.Records)),
		slog.Int("connections", len(connections)),
		slog.Int("delivered", result.Delivered),
		slog.Int("gone", result.Gone),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", time.Since(start)))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("broadcast interrupted: %w", err)
	}
	return result, nil
}
