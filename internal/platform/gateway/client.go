package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/todo-api/internal/api/shared"
	"github.com/phrazzld/todo-api/internal/domain"
)

// DefaultPushTimeout bounds a single push when no timeout is configured.
const DefaultPushTimeout = 5 * time.Second

// maxErrorBody limits how much of an error response is kept for logging.
const maxErrorBody = 512

// ErrUnexpectedStatus is wrapped in transport failures caused by a non-2xx,
// non-410 response.
var ErrUnexpectedStatus = errors.New("unexpected gateway response status")

// Client pushes payloads through the connection management API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a Client for the API at endpoint, scoped to stage. A
// non-empty token is sent in the internal token header of every push.
// A nil httpClient gets one with the given timeout.
func NewClient(
	endpoint, stage, token string,
	timeout time.Duration,
	httpClient *http.Client,
	logger *slog.Logger,
) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("gateway endpoint cannot be empty")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	if stage == "" || strings.ContainsAny(stage, "/?#") {
		return nil, fmt.Errorf("invalid gateway stage %q", stage)
	}
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(endpoint, "/") + "/" + stage + "/@connections/",
		token:      token,
		logger:     logger.With(slog.String("component", "gateway_client")),
	}, nil
}

// ConnectionURL returns the management URL for connectionID.
func (c *Client) ConnectionURL(connectionID string) string {
	return c.baseURL + url.PathEscape(connectionID)
}

// PushTo posts payload to connectionID. It never returns an error; the
// outcome is classified in the returned PushResult.
func (c *Client) PushTo(ctx context.Context, connectionID string, payload []byte) domain.PushResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ConnectionURL(connectionID), bytes.NewReader(payload))
	if err != nil {
		return domain.TransportFailure(fmt.Errorf("build push request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(shared.InternalTokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TransportFailure(fmt.Errorf("push to %s: %w", connectionID, err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return domain.Delivered()
	case resp.StatusCode == http.StatusGone:
		c.logger.Debug("connection reported gone", slog.String("connection_id", connectionID))
		return domain.Gone()
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.TransportFailure(fmt.Errorf("%w: %d %s",
			ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body))))
	}
}
