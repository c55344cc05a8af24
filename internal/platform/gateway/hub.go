package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/todo-api/internal/api/shared"
	"github.com/phrazzld/todo-api/internal/domain"
)

const (
	// DefaultPingInterval is used when HubConfig.PingInterval is zero.
	DefaultPingInterval = 30 * time.Second

	// writeWait bounds every socket write.
	writeWait = 10 * time.Second

	// maxInboundMessage caps frames read from clients; they are discarded.
	maxInboundMessage = 4096

	// maxPushBody mirrors the payload limit of hosted connection APIs.
	maxPushBody = 128 << 10

	// registryTimeout bounds registry calls made outside a request context.
	registryTimeout = 5 * time.Second
)

// ConnectionRegistry is where the hub records session lifecycle.
type ConnectionRegistry interface {
	Add(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// HubConfig configures a Hub.
type HubConfig struct {
	// PingInterval is how often idle sessions are pinged. A peer that does
	// not answer within two intervals is dropped.
	PingInterval time.Duration
	// CheckOrigin overrides the upgrader's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// session is one upgraded websocket.
type session struct {
	id          string
	conn        *websocket.Conn
	connectedAt time.Time

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// write sends payload as a text frame. gorilla/websocket allows one
// concurrent writer.
func (s *session) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks the websocket sessions terminated by this process.
type Hub struct {
	registry     ConnectionRegistry
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	logger       *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewHub creates a Hub that records sessions in registry.
func NewHub(registry ConnectionRegistry, cfg HubConfig, logger *slog.Logger) (*Hub, error) {
	if registry == nil {
		return nil, errors.New("connection registry cannot be nil")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		pingInterval: cfg.PingInterval,
		logger:       logger.With(slog.String("component", "websocket_hub")),
		sessions:     make(map[string]*session),
	}, nil
}

// SessionCount returns the number of open sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) lookup(id string) (*session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// ServeWS upgrades the request, registers the new session and blocks until
// the peer disconnects, after which the session is removed from the
// registry.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	s := &session{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: time.Now().UTC(),
		done:        make(chan struct{}),
	}
	log := h.logger.With(slog.String("connection_id", s.id))

	// A broadcast may snapshot the registry as soon as Add commits, so the
	// session has to be reachable through PushTo first.
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()

	if err := h.registry.Add(r.Context(), s.id); err != nil {
		log.Error("failed to register connection", slog.Any("error", err))
		h.mu.Lock()
		delete(h.sessions, s.id)
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registration failed"),
			time.Now().Add(writeWait))
		s.close()
		return
	}
	log.Info("connection opened")

	go h.pingLoop(s)
	h.readLoop(s)

	h.disconnect(s)
	log.Info("connection closed")
}

// readLoop consumes and discards client frames, keeping the read deadline
// alive through pongs.
func (h *Hub) readLoop(s *session) {
	pongWait := 2 * h.pingInterval
	s.conn.SetReadLimit(maxInboundMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read ended",
					slog.String("connection_id", s.id),
					slog.Any("error", err))
			}
			return
		}
	}
}

func (h *Hub) pingLoop(s *session) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.close()
				return
			}
		}
	}
}

// disconnect closes s and drops it from the hub and the registry.
func (h *Hub) disconnect(s *session) {
	s.close()

	h.mu.Lock()
	if current, ok := h.sessions[s.id]; ok && current == s {
		delete(h.sessions, s.id)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), registryTimeout)
	defer cancel()
	if err := h.registry.Remove(ctx, s.id); err != nil {
		h.logger.Error("failed to remove connection",
			slog.String("connection_id", s.id),
			slog.Any("error", err))
	}
}

// PushTo writes payload to the local session connectionID. An unknown
// session or a failed write is reported as gone; a failed write also closes
// the socket.
func (h *Hub) PushTo(ctx context.Context, connectionID string, payload []byte) domain.PushResult {
	if err := ctx.Err(); err != nil {
		return domain.TransportFailure(err)
	}

	s, ok := h.lookup(connectionID)
	if !ok {
		return domain.Gone()
	}

	if err := s.write(payload); err != nil {
		h.logger.Debug("write to session failed",
			slog.String("connection_id", connectionID),
			slog.Any("error", err))
		s.close()
		return domain.Gone()
	}
	return domain.Delivered()
}

// Close closes every open session. ServeWS calls unregister them as their
// read loops exit.
func (h *Hub) Close() {
	h.mu.RLock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		s.close()
	}
}

// connectionInfo is returned by GET /@connections/{connectionID}.
type connectionInfo struct {
	ConnectionID string    `json:"connectionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
}

// ManagementRoutes returns the connection management API. It is meant to
// be mounted under "/{stage}".
func (h *Hub) ManagementRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/@connections/{connectionID}", h.handlePost)
	r.Get("/@connections/{connectionID}", h.handleGet)
	r.Delete("/@connections/{connectionID}", h.handleDelete)
	return r
}

func (h *Hub) handlePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "connectionID")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPushBody))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	res := h.PushTo(r.Context(), id, payload)
	switch res.Status {
	case domain.PushOK:
		w.WriteHeader(http.StatusOK)
	case domain.PushGone:
		shared.RespondWithError(w, r, http.StatusGone, "Connection is gone")
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Push failed", res.Err)
	}
}

func (h *Hub) handleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(chi.URLParam(r, "connectionID"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusGone, "Connection is gone")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, connectionInfo{
		ConnectionID: s.id,
		ConnectedAt:  s.connectedAt,
	})
}

func (h *Hub) handleDelete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(chi.URLParam(r, "connectionID"))
	if !ok {
		shared.RespondWithError(w, r, http.StatusGone, "Connection is gone")
		return
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.close()
	w.WriteHeader(http.StatusNoContent)
}
