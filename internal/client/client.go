// Package client provides a REST client for the histograph server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/events"
	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/raphaelgruber/histograph-go/internal/models"
	"github.com/raphaelgruber/histograph-go/internal/server"
)

// Client is a REST client for the histograph server.
type Client struct {
	endpoint   string
	user       string
	httpClient *http.Client
}

// New creates a new client acting as user.
// If endpoint is empty, uses HISTOGRAPH_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via HISTOGRAPH_CLIENT_TIMEOUT env var (default 10m for bulk drains).
func New(endpoint, user string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("HISTOGRAPH_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8484"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("HISTOGRAPH_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		user:     user,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       server.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Error == "" {
		return fmt.Sprintf("server error: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Body.Error)
}

// do sends a request and decodes a 2xx JSON body into result.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(server.UserHeader, c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, &apiErr.Body)
		// Some failures carry a body the caller still wants, e.g. the
		// outcome of a not-found action.
		if result != nil && len(respBody) > 0 {
			_ = json.Unmarshal(respBody, result)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// CreateAction performs an action. batchSize overrides the drain batch size
// of bulk unlinks when positive.
//
// A not-found action returns both its outcome and an *APIError.
func (c *Client) CreateAction(ctx context.Context, kind models.Kind, details any, batchSize int) (*actions.Outcome, error) {
	path := "/api/actions/" + url.PathEscape(string(kind))
	if batchSize > 0 {
		path += "?batchSize=" + strconv.Itoa(batchSize)
	}

	var out actions.Outcome
	err := c.do(ctx, http.MethodPost, path, details, &out)
	if err != nil {
		if out.Action != nil {
			return &out, err
		}
		return nil, err
	}
	return &out, nil
}

// GetAction retrieves one action. Returns nil if not found.
func (c *Client) GetAction(ctx context.Context, id string) (*models.Action, error) {
	var a models.Action
	err := c.do(ctx, http.MethodGet, "/api/actions/"+url.PathEscape(id), nil, &a)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListActions lists actions newest first.
func (c *Client) ListActions(ctx context.Context, filter db.ActionFilter) ([]models.Action, error) {
	q := url.Values{}
	if filter.Kind != "" {
		q.Set("kind", string(filter.Kind))
	}
	if filter.PerformedBy != "" {
		q.Set("performedBy", filter.PerformedBy)
	}
	if filter.IncompleteOnly {
		q.Set("incomplete", "true")
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/api/actions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list []models.Action
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Schema returns the JSON schema of a kind's details.
func (c *Client) Schema(ctx context.Context, kind models.Kind) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/actions/schema/"+url.PathEscape(string(kind)), nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Stats returns the server's runtime statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// =============================================================================
// EVENTS
// =============================================================================

// Subscribe streams action events until ctx is cancelled or onEvent returns
// an error.
func (c *Client) Subscribe(ctx context.Context, onEvent func(events.Message) error) error {
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/ws")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg events.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}
		if msg.Type != events.MessageTypeAction {
			continue
		}
		if err := onEvent(msg); err != nil {
			return err
		}
	}
}
