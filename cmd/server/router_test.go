package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/todo-api/internal/api"
	apiMiddleware "github.com/phrazzld/todo-api/internal/api/middleware"
	"github.com/phrazzld/todo-api/internal/api/shared"
	"github.com/phrazzld/todo-api/internal/events"
	"github.com/phrazzld/todo-api/internal/mocks"
	"github.com/phrazzld/todo-api/internal/pipeline"
	"github.com/phrazzld/todo-api/internal/platform/gateway"
	"github.com/phrazzld/todo-api/internal/service"
	"github.com/phrazzld/todo-api/internal/service/auth"
	"github.com/phrazzld/todo-api/internal/thumbnail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStage         = "dev"
	testPrincipal     = "google-oauth2|shortU1"
	testInternalToken = "internal-push-token-0123"
	thumbBaseURL      = "https://storage.googleapis.com/todo-thumbnails"
)

type stubSigner struct{}

func (stubSigner) SignedUploadURL(key, contentType string, expiry time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (stubSigner) PublicURL(key string) string {
	return "https://storage.googleapis.com/todo-attachments/" + key
}

// stack is a fully wired server backed by in-memory stores.
type stack struct {
	server      *httptest.Server
	hub         *gateway.Hub
	tasks       *mocks.MockTaskStore
	attachments *mocks.MockBlobStore
	thumbnails  *mocks.MockBlobStore
	connections *mocks.MockConnectionStore
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := &stack{
		tasks:       mocks.NewMockTaskStore(),
		attachments: mocks.NewMockBlobStore(),
		thumbnails:  mocks.NewMockBlobStore(),
		connections: mocks.NewMockConnectionStore(),
	}

	registry, err := pipeline.NewRegistry(s.connections, time.Now, log)
	require.NoError(t, err)
	s.hub, err = gateway.NewHub(registry, gateway.HubConfig{PingInterval: time.Second}, log)
	require.NoError(t, err)

	taskService, err := service.NewTaskService(s.tasks, stubSigner{}, 5*time.Minute, log)
	require.NoError(t, err)

	emitter := events.NewInMemoryEmitter(log)
	eventsHandler, err := api.NewEventsHandler(emitter, api.EventsHandlerConfig{
		SourceBucket:      "todo-attachments",
		InvocationTimeout: 10 * time.Second,
	}, log)
	require.NoError(t, err)

	jwt := &mocks.MockJWTService{Claims: &auth.Claims{Principal: testPrincipal}}

	s.server = httptest.NewServer(newRouter(routerDeps{
		logger:         log,
		authMiddleware: apiMiddleware.NewAuthMiddleware(jwt),
		taskHandler:    api.NewTaskHandler(taskService, log),
		eventsHandler:  eventsHandler,
		serveWS:        s.hub.ServeWS,
		management:     s.hub.ManagementRoutes(),
		stage:          testStage,
		internalToken:  testInternalToken,
	}))
	t.Cleanup(func() {
		s.hub.Close()
		s.server.Close()
	})

	// The broadcaster reaches the sessions through the management API of
	// the server it is mounted on, as it would in a multi-process setup.
	client, err := gateway.NewClient(s.server.URL, testStage, testInternalToken, 2*time.Second, nil, log)
	require.NoError(t, err)

	transformer, err := thumbnail.NewTransformer(s.attachments, s.thumbnails, thumbnail.DefaultQuality, log)
	require.NoError(t, err)
	router, err := pipeline.NewUploadRouter(transformer, s.tasks, pipeline.UploadRouterConfig{
		ThumbnailBaseURL: thumbBaseURL,
	}, log)
	require.NoError(t, err)
	broadcaster, err := pipeline.NewBroadcaster(registry, client, 0, log)
	require.NoError(t, err)

	emitter.RegisterHandler("thumbnails", router)
	emitter.RegisterHandler("notifications", broadcaster)
	return s
}

func (s *stack) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer test-token")
	if strings.HasPrefix(path, "/events/") {
		req.Header.Set(shared.InternalTokenHeader, testInternalToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *stack) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	before := s.hub.SessionCount()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return s.hub.SessionCount() == before+1 && len(s.connections.IDs()) == before+1
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestRouter_Health(t *testing.T) {
	s := newStack(t)

	resp := s.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_TasksRequireAuth(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.server.URL + "/api/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// TestRouter_UploadToNotification walks one task from creation through
// attachment upload to the thumbnail notification on a live websocket.
func TestRouter_UploadToNotification(t *testing.T) {
	s := newStack(t)
	conn := s.dial(t)

	resp := s.do(t, http.MethodPost, "/api/tasks", `{"name":"photo of receipt"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created api.TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp = s.do(t, http.MethodPost, "/api/tasks/"+created.TaskID+"/attachment", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	key := "shortU1/" + created.TaskID
	s.attachments.Seed(key, jpegBytes(t, 640, 480), "image/jpeg")

	resp = s.do(t, http.MethodPost, "/events/uploads",
		`{"records":[{"bucketObjectKey":"`+key+`"}]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	msgType, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.JSONEq(t, `{"imageId":"`+key+`"}`, string(msg))

	thumb, ok := s.thumbnails.Object(key + ".jpeg")
	require.True(t, ok, "thumbnail written to the derived bucket")
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 100, cfg.Height)

	task, err := s.tasks.Get(context.Background(), "shortU1", created.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task.ThumbnailURL)
	assert.Equal(t, thumbBaseURL+"/"+key+".jpeg", *task.ThumbnailURL)
	require.NotNil(t, task.AttachmentURL)
	assert.Equal(t, "https://storage.googleapis.com/todo-attachments/"+key, *task.AttachmentURL)
}

func TestRouter_StaleConnectionPrunedOnBroadcast(t *testing.T) {
	s := newStack(t)
	conn := s.dial(t)

	// A registry entry whose session lives nowhere: the management API
	// answers 410 and the broadcaster prunes it.
	require.NoError(t, s.connections.Put(context.Background(), "stale", time.Now()))

	resp := s.do(t, http.MethodPost, "/events/uploads", `{"records":[{"bucketObjectKey":"shortU1/task42"}]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"imageId":"shortU1/task42"}`, string(msg))

	assert.NotContains(t, s.connections.IDs(), "stale")
	assert.Len(t, s.connections.IDs(), 1)
}

func TestRouter_MalformedUploadBatch(t *testing.T) {
	s := newStack(t)

	resp := s.do(t, http.MethodPost, "/events/uploads", `{"records":[]}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// One bad key in a delivery fails only its own entry; the valid sibling is
// still thumbnailed and broadcast.
func TestRouter_MixedUploadBatch(t *testing.T) {
	s := newStack(t)
	conn := s.dial(t)

	resp := s.do(t, http.MethodPost, "/api/tasks", `{"name":"scan"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created api.TaskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	key := "shortU1/" + created.TaskID
	s.attachments.Seed(key, jpegBytes(t, 200, 200), "image/jpeg")

	resp = s.do(t, http.MethodPost, "/events/uploads",
		`{"records":[{"bucketObjectKey":""},{"bucketObjectKey":"`+key+`"}]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, ok := s.thumbnails.Object(key + ".jpeg")
	assert.True(t, ok)
	task, err := s.tasks.Get(context.Background(), "shortU1", created.TaskID)
	require.NoError(t, err)
	require.NotNil(t, task.ThumbnailURL)

	// Both records are broadcast; the order across records is the batch order.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var images []string
	for i := 0; i < 2; i++ {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var payload struct {
			ImageID string `json:"imageId"`
		}
		require.NoError(t, json.Unmarshal(msg, &payload))
		images = append(images, payload.ImageID)
	}
	assert.Equal(t, []string{"", key}, images)
}

func TestRouter_InternalRoutesRequireToken(t *testing.T) {
	s := newStack(t)
	_ = s.dial(t)
	id := s.connections.IDs()[0]
	batch := `{"records":[{"bucketObjectKey":"shortU1/task42"}]}`

	post := func(url, token, body string) int {
		req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
		require.NoError(t, err)
		if token != "" {
			req.Header.Set(shared.InternalTokenHeader, token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, post(s.server.URL+"/events/uploads", "", batch))
	assert.Equal(t, http.StatusUnauthorized, post(s.server.URL+"/events/uploads", "wrong-token-value", batch))
	assert.Equal(t, http.StatusUnauthorized, post(s.server.URL+"/"+testStage+"/@connections/"+id, "", `{"imageId":"forged"}`))

	req, err := http.NewRequest(http.MethodDelete, s.server.URL+"/"+testStage+"/@connections/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, s.hub.SessionCount())

	// Pub/Sub push subscriptions carry the token in the endpoint URL.
	assert.Equal(t, http.StatusAccepted,
		post(s.server.URL+"/events/uploads?token="+testInternalToken, "", batch))
}

func TestHandleMigrations_RejectsUnsupportedCommand(t *testing.T) {
	err := handleMigrations(context.Background(), nil, "create", slog.Default())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported migration command")
}
