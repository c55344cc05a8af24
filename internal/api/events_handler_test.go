package api_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/todo-api/internal/api"
	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingEmitter records every emitted batch.
type capturingEmitter struct {
	mu        sync.Mutex
	batches   []*domain.UploadEventBatch
	deadlines []time.Time
	err       error
}

func (c *capturingEmitter) Emit(ctx context.Context, batch *domain.UploadEventBatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
	if d, ok := ctx.Deadline(); ok {
		c.deadlines = append(c.deadlines, d)
	}
	return c.err
}

var _ events.Emitter = (*capturingEmitter)(nil)

func newEventsHandler(t *testing.T, emitter events.Emitter) *api.EventsHandler {
	t.Helper()
	h, err := api.NewEventsHandler(emitter, api.EventsHandlerConfig{
		SourceBucket:      "todo-attachments",
		InvocationTimeout: 30 * time.Second,
	}, nil)
	require.NoError(t, err)
	return h
}

func postEvent(h *api.EventsHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/events/uploads", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleUploads(w, req)
	return w
}

func TestNewEventsHandler_Validation(t *testing.T) {
	_, err := api.NewEventsHandler(nil, api.EventsHandlerConfig{InvocationTimeout: time.Second}, nil)
	assert.Error(t, err)

	_, err = api.NewEventsHandler(&capturingEmitter{}, api.EventsHandlerConfig{}, nil)
	assert.Error(t, err)
}

func TestEventsHandler_Batch(t *testing.T) {
	emitter := &capturingEmitter{}
	h := newEventsHandler(t, emitter)

	before := time.Now()
	w := postEvent(h, `{"records":[{"bucketObjectKey":"shortU1/task42"},{"bucketObjectKey":"shortU2/task7"}]}`)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp api.UploadBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, []string{"shortU1/task42", "shortU2/task7"}, resp.Keys)

	require.Len(t, emitter.batches, 1)
	assert.Equal(t, []string{"shortU1/task42", "shortU2/task7"}, emitter.batches[0].Keys())
	require.Len(t, emitter.deadlines, 1, "emit runs under the invocation deadline")
	assert.WithinDuration(t, before.Add(30*time.Second), emitter.deadlines[0], 5*time.Second)
}

func TestEventsHandler_MalformedBatches(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `records`},
		{name: "array", body: `[]`},
		{name: "no records", body: `{"records":[]}`},
		{name: "null", body: `null`},
		{name: "pubsub without object", body: `{"message":{"attributes":{"eventType":"OBJECT_FINALIZE"}}}`},
		{name: "pubsub bad data", body: `{"message":{"data":"!!!not-base64"}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			emitter := &capturingEmitter{}
			w := postEvent(newEventsHandler(t, emitter), tc.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, emitter.batches)
		})
	}
}

// Entry-level problems such as an empty or malformed key belong to the
// consumers, which fail that entry alone.
func TestEventsHandler_MixedBatchIsEmittedWhole(t *testing.T) {
	emitter := &capturingEmitter{}
	h := newEventsHandler(t, emitter)

	w := postEvent(h, `{"records":[{"bucketObjectKey":""},{"bucketObjectKey":"no-separator"},{"bucketObjectKey":"shortU1/task42"}]}`)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp api.UploadBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Accepted)

	require.Len(t, emitter.batches, 1)
	assert.Equal(t, []string{"", "no-separator", "shortU1/task42"}, emitter.batches[0].Keys())
}

func TestEventsHandler_EmitFailureAsksForRedelivery(t *testing.T) {
	emitter := &capturingEmitter{err: errors.New("failed to snapshot connections: db down")}
	h := newEventsHandler(t, emitter)

	w := postEvent(h, `{"records":[{"bucketObjectKey":"shortU1/task42"}]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestEventsHandler_PubSubEnvelope(t *testing.T) {
	t.Run("object id attribute", func(t *testing.T) {
		emitter := &capturingEmitter{}
		w := postEvent(newEventsHandler(t, emitter), `{
			"message": {
				"attributes": {
					"eventType": "OBJECT_FINALIZE",
					"bucketId": "todo-attachments",
					"objectId": "shortU1/task42"
				},
				"messageId": "1"
			},
			"subscription": "projects/p/subscriptions/uploads"
		}`)

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		require.Len(t, emitter.batches, 1)
		assert.Equal(t, []string{"shortU1/task42"}, emitter.batches[0].Keys())
	})

	t.Run("object name from data", func(t *testing.T) {
		emitter := &capturingEmitter{}
		data := base64.StdEncoding.EncodeToString([]byte(`{"name":"shortU1/task43","bucket":"todo-attachments"}`))
		w := postEvent(newEventsHandler(t, emitter), `{"message":{"data":"`+data+`"}}`)

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		require.Len(t, emitter.batches, 1)
		assert.Equal(t, []string{"shortU1/task43"}, emitter.batches[0].Keys())
	})

	t.Run("non finalize events are acknowledged", func(t *testing.T) {
		emitter := &capturingEmitter{}
		w := postEvent(newEventsHandler(t, emitter),
			`{"message":{"attributes":{"eventType":"OBJECT_DELETE","objectId":"shortU1/task42"}}}`)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, emitter.batches)
	})

	t.Run("other buckets are acknowledged", func(t *testing.T) {
		emitter := &capturingEmitter{}
		w := postEvent(newEventsHandler(t, emitter),
			`{"message":{"attributes":{"bucketId":"todo-thumbnails","objectId":"shortU1/task42.jpeg"}}}`)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, emitter.batches)
	})
}
