package confirm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Receipt is the server's response to a successful deletion: what was
// deleted, by whom, and how long the undo window lasts.
type Receipt struct {
	ResourceType    string    `json:"resource_type"`
	ResourceID      string    `json:"resource_id"`
	DeletedAt       time.Time `json:"deleted_at"`
	DeletedBy       string    `json:"deleted_by"`
	Reason          string    `json:"reason"`
	RestoreDeadline time.Time `json:"restore_deadline"`
}

// ServerError is a structured refusal from the admin API, surfaced verbatim
// so callers can distinguish a denied action from a transport failure.
type ServerError struct {
	Status  int    // HTTP status code
	Kind    string // error classification, e.g. VALIDATION, CONFLICT
	Code    string // machine-readable detail, e.g. TENANT_MISMATCH
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("confirm: server refused (%d %s/%s): %s", e.Status, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("confirm: server refused (%d %s): %s", e.Status, e.Kind, e.Message)
}

// Client issues confirmed destructive actions against the admin API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, e.g. to set custom
// timeouts or transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the admin API at baseURL authenticating with
// the given bearer token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Delete soft-deletes a resource. The confirmation is validated locally
// first: an unacknowledged or under-documented deletion is rejected before
// any request is made.
func (c *Client) Delete(ctx context.Context, resourceType, id string, conf Confirmation) (*Receipt, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"reason": strings.TrimSpace(conf.Reason)})
	if err != nil {
		return nil, fmt.Errorf("confirm: encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/%s/%s", c.baseURL, resourceType, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("confirm: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("confirm: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeServerError(resp)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("confirm: decoding receipt: %w", err)
	}
	return &receipt, nil
}

// Restore undoes a prior soft delete. No confirmation is required: restoring
// is the non-destructive direction.
func (c *Client) Restore(ctx context.Context, resourceType, id string) error {
	url := fmt.Sprintf("%s/api/v1/%s/%s/restore", c.baseURL, resourceType, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("confirm: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("confirm: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeServerError(resp)
	}
	return nil
}

// decodeServerError reads the structured error payload the admin API emits.
// A body that does not parse still yields a ServerError carrying the status,
// so the caller always gets the refusal's shape.
func decodeServerError(resp *http.Response) error {
	serverErr := &ServerError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		serverErr.Message = "unreadable error response"
		return serverErr
	}

	var payload struct {
		Error struct {
			Kind    string `json:"kind"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error.Message == "" {
		serverErr.Message = strings.TrimSpace(string(raw))
		return serverErr
	}

	serverErr.Kind = payload.Error.Kind
	serverErr.Code = payload.Error.Code
	serverErr.Message = payload.Error.Message
	return serverErr
}
