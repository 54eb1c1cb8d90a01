// Package client is a typed HTTP client for the management API.
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
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/control"
	"github.com/getmockd/embedhttpd/pkg/httputil"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

// DefaultTimeout is the HTTP timeout of a new Client.
const DefaultTimeout = 30 * time.Second

// ErrUnreachable is returned when the management API cannot be contacted.
var ErrUnreachable = errors.New("management API unreachable")

// APIError is a non-2xx response from the management API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client talks to one management API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// RelayURL returns the WebSocket URL a remote handler uses to attach to
// instanceID.
func (c *Client) RelayURL(instanceID message.InstanceID) string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + instancePath(instanceID) + "/relay"
}

// Health returns the API health.
func (c *Client) Health(ctx context.Context) (*control.HealthResponse, error) {
	var out control.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListInstances lists the registered instances.
func (c *Client) ListInstances(ctx context.Context) ([]bridge.InstanceInfo, error) {
	var out control.InstanceListResponse
	if err := c.do(ctx, http.MethodGet, "/instances", nil, &out); err != nil {
		return nil, err
	}
	return out.Instances, nil
}

// GetInstance describes one instance.
func (c *Client) GetInstance(ctx context.Context, instanceID message.InstanceID) (*bridge.InstanceInfo, error) {
	return c.instanceCall(ctx, http.MethodGet, instancePath(instanceID), nil)
}

// CreateInstance creates an instance.
func (c *Client) CreateInstance(ctx context.Context, req *control.CreateInstanceRequest) (*bridge.InstanceInfo, error) {
	return c.instanceCall(ctx, http.MethodPost, "/instances", req)
}

// StartInstance starts an instance.
func (c *Client) StartInstance(ctx context.Context, instanceID message.InstanceID) (*bridge.InstanceInfo, error) {
	return c.instanceCall(ctx, http.MethodPost, instancePath(instanceID)+"/start", nil)
}

// StopInstance stops an instance. A zero req selects the server defaults.
func (c *Client) StopInstance(ctx context.Context, instanceID message.InstanceID, req control.StopRequest) (*bridge.InstanceInfo, error) {
	return c.instanceCall(ctx, http.MethodPost, instancePath(instanceID)+"/stop", req)
}

// ReloadInstance reloads an instance.
func (c *Client) ReloadInstance(ctx context.Context, instanceID message.InstanceID) (*bridge.InstanceInfo, error) {
	return c.instanceCall(ctx, http.MethodPost, instancePath(instanceID)+"/reload", nil)
}

// DisposeInstance disposes an instance.
func (c *Client) DisposeInstance(ctx context.Context, instanceID message.InstanceID, req control.StopRequest) error {
	return c.do(ctx, http.MethodPost, instancePath(instanceID)+"/dispose", req, nil)
}

// RemoveInstance removes and disposes an instance. Without force it fails
// while requests are pending.
func (c *Client) RemoveInstance(ctx context.Context, instanceID message.InstanceID, force bool) error {
	path := instancePath(instanceID)
	if force {
		path += "?force=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Pending lists the requests waiting for a response on an instance.
func (c *Client) Pending(ctx context.Context, instanceID message.InstanceID) (*control.PendingListResponse, error) {
	var out control.PendingListResponse
	if err := c.do(ctx, http.MethodGet, instancePath(instanceID)+"/pending", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Respond answers a pending request.
func (c *Client) Respond(ctx context.Context, instanceID message.InstanceID, requestID string, req control.RespondRequest) error {
	path := instancePath(instanceID) + "/requests/" + url.PathEscape(requestID) + "/respond"
	return c.do(ctx, http.MethodPost, path, req, nil)
}

// ListRequests queries the request log.
func (c *Client) ListRequests(ctx context.Context, filter *requestlog.Filter) (*control.RequestListResponse, error) {
	path := "/requests"
	if q := filterQuery(filter); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out control.RequestListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearRequests empties the request log and returns how many entries it
// held.
func (c *Client) ClearRequests(ctx context.Context) (int, error) {
	var out control.ClearResponse
	if err := c.do(ctx, http.MethodDelete, "/requests", nil, &out); err != nil {
		return 0, err
	}
	return out.Cleared, nil
}

func (c *Client) instanceCall(ctx context.Context, method, path string, body any) (*bridge.InstanceInfo, error) {
	var out bridge.InstanceInfo
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		rd = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var errResp httputil.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil {
		apiErr.Code = errResp.Error
		apiErr.Message = errResp.Message
	}
	return apiErr
}

func instancePath(instanceID message.InstanceID) string {
	return "/instances/" + instanceID.String()
}

func filterQuery(f *requestlog.Filter) url.Values {
	q := url.Values{}
	if f == nil {
		return q
	}
	if f.InstanceID > 0 {
		q.Set("instance", strconv.FormatInt(f.InstanceID, 10))
	}
	if f.Outcome != "" {
		q.Set("outcome", f.Outcome)
	}
	if f.Method != "" {
		q.Set("method", f.Method)
	}
	if f.Path != "" {
		q.Set("path", f.Path)
	}
	if f.StatusCode > 0 {
		q.Set("status", strconv.Itoa(f.StatusCode))
	}
	if f.HasError != nil {
		q.Set("hasError", strconv.FormatBool(*f.HasError))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}
