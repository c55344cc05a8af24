package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/todo-api/internal/api/shared"
	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/events"
	"github.com/phrazzld/todo-api/internal/platform/logger"
)

// EventsHandlerConfig configures EventsHandler.
type EventsHandlerConfig struct {
	// SourceBucket, when set, drops Pub/Sub notifications for other buckets.
	// The thumbnail bucket must never feed back into the pipeline.
	SourceBucket string
	// InvocationTimeout bounds the processing of one delivery.
	InvocationTimeout time.Duration
}

// EventsHandler receives upload batches pushed by the event broker and hands
// them to the emitter. Delivery is at-least-once: a 5xx asks the broker to
// redeliver, and every consumer tolerates the repeat.
type EventsHandler struct {
	emitter events.Emitter
	cfg     EventsHandlerConfig
	logger  *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(emitter events.Emitter, cfg EventsHandlerConfig, logger *slog.Logger) (*EventsHandler, error) {
	if emitter == nil {
		return nil, errors.New("emitter cannot be nil")
	}
	if cfg.InvocationTimeout <= 0 {
		return nil, fmt.Errorf("invocation timeout must be positive, got %s", cfg.InvocationTimeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		emitter: emitter,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "events_handler")),
	}, nil
}

// HandleUploads handles POST /events/uploads. The body is either an upload
// batch ({"records":[{"bucketObjectKey":...}]}) or a Pub/Sub push envelope
// wrapping one Cloud Storage notification.
func (h *EventsHandler) HandleUploads(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, shared.MaxRequestBodyBytes))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	batch, skip, err := h.decodeDelivery(body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid upload batch", err)
		return
	}
	if skip != "" {
		log.Debug("ignoring notification", slog.String("reason", skip))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if len(batch.Records) == 0 {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			GetSafeErrorMessage(domain.ErrEmptyUploadBatch), domain.ErrEmptyUploadBatch)
		return
	}
	if err := shared.ValidateRequest(batch); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, shared.ValidationMessage(err), err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.InvocationTimeout)
	defer cancel()

	log.Info("upload batch received", slog.Int("records", len(batch.Records)))

	if err := h.emitter.Emit(ctx, batch); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to process upload batch", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, UploadBatchResponse{
		Accepted: len(batch.Records),
		Keys:     batch.Keys(),
	})
}

// decodeDelivery returns the batch to emit, or a non-empty skip reason for a
// notification that is acknowledged without processing.
func (h *EventsHandler) decodeDelivery(body []byte) (*domain.UploadEventBatch, string, error) {
	var envelope PubSubPushRequest
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if !envelope.isPubSub() {
		var batch domain.UploadEventBatch
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		return &batch, "", nil
	}

	attrs := envelope.Message.Attributes
	if eventType := attrs[attrEventType]; eventType != "" && eventType != eventObjectFinalize {
		return nil, "event type " + eventType, nil
	}
	if bucket := attrs[attrBucketID]; bucket != "" && h.cfg.SourceBucket != "" && bucket != h.cfg.SourceBucket {
		return nil, "bucket " + bucket, nil
	}

	key, err := envelope.objectKey()
	if err != nil {
		return nil, "", err
	}
	return &domain.UploadEventBatch{
		Records: []domain.UploadRecord{{BucketObjectKey: key}},
	}, "", nil
}
