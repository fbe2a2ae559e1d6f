// Package syncclient pushes the ledger to, and pulls it from, the remote
// sync service.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvloznov/mintbalance/internal/domain"
)

// DefaultTimeout bounds each sync request.
const DefaultTimeout = 30 * time.Second

// ErrNotConfigured is returned when no sync URL or token is set.
var ErrNotConfigured = errors.New("sync is not configured")

// RequestError is a non-2xx answer from the sync service.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// PullResponse is what the service returns for a pull. Settings is nil
// when the server has none stored.
type PullResponse struct {
	Transactions  []domain.Transaction  `json:"transactions"`
	Subscriptions []domain.Subscription `json:"subscriptions"`
	Settings      *domain.Settings      `json:"settings"`
}

// PushPayload is the body of a push. Omitted parts are left alone on the
// server.
type PushPayload struct {
	Transactions  []domain.Transaction  `json:"transactions,omitempty"`
	Subscriptions []domain.Subscription `json:"subscriptions,omitempty"`
	Settings      *domain.Settings      `json:"settings,omitempty"`
}

// Client talks to one sync service with one bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. A nil httpClient gets DefaultTimeout.
func New(baseURL, token string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" || strings.TrimSpace(token) == "" {
		return nil, ErrNotConfigured
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}, nil
}

// Pull fetches the server's ledger. A non-zero since asks only for
// records changed after it.
func (c *Client) Pull(ctx context.Context, since time.Time) (PullResponse, error) {
	path := "/api/sync/pull"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}

	var out PullResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return PullResponse{}, fmt.Errorf("Pull: %w", err)
	}
	return out, nil
}

// Push uploads payload.
func (c *Client) Push(ctx context.Context, payload PushPayload) error {
	if err := c.do(ctx, http.MethodPost, "/api/sync/push", payload, nil); err != nil {
		return fmt.Errorf("Push: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("Request failed (%d)", resp.StatusCode)
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &RequestError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
