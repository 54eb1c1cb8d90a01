package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/httputil"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/metrics"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

type testAPI struct {
	t      *testing.T
	bridge *bridge.Bridge
	store  *requestlog.MemoryStore
	srv    *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := requestlog.NewMemoryStore(100)
	registry := metrics.NewRegistry()
	b := bridge.New(
		bridge.WithRequestTimeout(2*time.Second),
		bridge.WithRequestLog(store),
		bridge.WithMetrics(metrics.NewBridge(registry)),
	)
	s := New(b, WithRequestStore(store), WithMetricsRegistry(registry), WithVersion("test"))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(t.Context())
		srv.Close()
		_ = b.Close()
	})
	return &testAPI{t: t, bridge: b, store: store, srv: srv}
}

func (a *testAPI) call(method, path string, body any) (int, []byte) {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(a.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp.StatusCode, data
}

func (a *testAPI) create(body map[string]any) bridge.InstanceInfo {
	a.t.Helper()
	status, data := a.call(http.MethodPost, "/instances", body)
	require.Equal(a.t, http.StatusCreated, status, string(data))
	var info bridge.InstanceInfo
	require.NoError(a.t, json.Unmarshal(data, &info))
	return info
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &resp), string(data))
	return resp.Error
}

// background issues a GET and delivers the status code.
func background(url string) <-chan int {
	out := make(chan int, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			out <- 0
			return
		}
		_ = resp.Body.Close()
		out <- resp.StatusCode
	}()
	return out
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	status, data := api.call(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, 0, health.Instances)
}

func TestCreateAndServe(t *testing.T) {
	api := newTestAPI(t)
	info := api.create(map[string]any{
		"name":      "hello",
		"host":      "127.0.0.1",
		"port":      0,
		"autoStart": true,
		"handler":   map[string]any{"type": "static", "status": 200, "body": "Hello World"},
	})
	assert.Equal(t, "hello", info.Name)
	assert.Equal(t, lifecycle.Running, info.State)
	assert.NotZero(t, info.Port)
	assert.True(t, info.HandlerAttached)

	resp, err := http.Get(info.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello World", string(body))

	status, data := api.call(http.MethodGet, "/instances", nil)
	require.Equal(t, http.StatusOK, status)
	var list InstanceListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Equal(t, 1, list.Count)

	status, data = api.call(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "embedhttpd_requests_total")
}

func TestLifecycleRoutes(t *testing.T) {
	api := newTestAPI(t)
	info := api.create(map[string]any{"host": "127.0.0.1", "port": 0, "handler": map[string]any{"type": "echo"}})
	base := fmt.Sprintf("/instances/%d", info.ID)
	assert.Equal(t, lifecycle.Created, info.State)

	for _, step := range []struct {
		action string
		want   lifecycle.State
	}{
		{"start", lifecycle.Running},
		{"reload", lifecycle.Running},
		{"stop", lifecycle.Stopped},
	} {
		status, data := api.call(http.MethodPost, base+"/"+step.action, nil)
		require.Equal(t, http.StatusOK, status, string(data))
		var got bridge.InstanceInfo
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, step.want, got.State, step.action)
	}

	status, _ := api.call(http.MethodPost, base+"/dispose", StopRequest{GracePeriodMs: 10, TimeoutMs: 20})
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = api.call(http.MethodPost, base+"/dispose", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, data := api.call(http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeInstanceDisposed, errorCode(t, data))
}

func TestManualRespond(t *testing.T) {
	api := newTestAPI(t)
	info := api.create(map[string]any{"host": "127.0.0.1", "port": 0, "autoStart": true, "handler": map[string]any{"type": "manual"}})
	base := fmt.Sprintf("/instances/%d", info.ID)

	status, data := api.call(http.MethodGet, "/relay/subscriptions", nil)
	require.Equal(t, http.StatusOK, status)
	var subs SubscriptionListResponse
	require.NoError(t, json.Unmarshal(data, &subs))
	require.Equal(t, 1, subs.Count)
	assert.Equal(t, "manual", subs.Subscriptions[0].Name)
	assert.Equal(t, info.ID, subs.Subscriptions[0].InstanceID)

	got := background(info.URL + "/wait")

	inst, err := api.bridge.Instance(info.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return inst.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	status, data = api.call(http.MethodGet, base+"/pending", nil)
	require.Equal(t, http.StatusOK, status)
	var pending PendingListResponse
	require.NoError(t, json.Unmarshal(data, &pending))
	require.Equal(t, 1, pending.Count)
	requestID := pending.Pending[0].RequestID

	status, data = api.call(http.MethodPost, base+"/requests/"+requestID+"/respond",
		RespondRequest{Status: 201, Body: "done"})
	require.Equal(t, http.StatusNoContent, status, string(data))
	assert.Equal(t, http.StatusCreated, <-got)

	status, data = api.call(http.MethodPost, base+"/requests/"+requestID+"/respond", RespondRequest{})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeAlreadyCompleted, errorCode(t, data))

	status, data = api.call(http.MethodPost, base+"/requests/nope/respond", RespondRequest{})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeRequestNotFound, errorCode(t, data))

	status, data = api.call(http.MethodPost, base+"/requests/"+requestID+"/respond", RespondRequest{Status: 7})
	assert.Equal(t, http.StatusBadRequest, status, string(data))
}

func TestRemoveBusyInstance(t *testing.T) {
	api := newTestAPI(t)
	info := api.create(map[string]any{"host": "127.0.0.1", "port": 0, "autoStart": true, "handler": map[string]any{"type": "manual"}})
	path := fmt.Sprintf("/instances/%d", info.ID)

	got := background(info.URL + "/")
	require.Eventually(t, func() bool {
		inst, err := api.bridge.Instance(info.ID)
		return err == nil && inst.Pending() == 1
	}, 2*time.Second, 5*time.Millisecond)

	status, data := api.call(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeInstanceBusy, errorCode(t, data))

	status, _ = api.call(http.MethodDelete, path+"?force=true", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, http.StatusServiceUnavailable, <-got)

	status, data = api.call(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeInstanceDisposed, errorCode(t, data))
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	first := api.create(map[string]any{"host": "127.0.0.1", "port": 0})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown instance", http.MethodGet, "/instances/999", nil, http.StatusNotFound, CodeInstanceNotFound},
		{"bad id", http.MethodGet, "/instances/abc", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"bad handler", http.MethodPost, "/instances", map[string]any{"host": "127.0.0.1", "port": 0, "handler": map[string]any{"type": "lua"}}, http.StatusBadRequest, CodeInvalidRequest},
		{"unknown field", http.MethodPost, "/instances", map[string]any{"hots": "x"}, http.StatusBadRequest, CodeInvalidRequest},
		{"address in use", http.MethodPost, "/instances", map[string]any{"host": "127.0.0.1", "port": first.Port}, http.StatusConflict, CodeAddressInUse},
		{"invalid tls", http.MethodPost, "/instances", map[string]any{"host": "127.0.0.1", "port": 0, "tls": map[string]any{"certPem": "x", "keyPem": "y"}}, http.StatusBadRequest, CodeInvalidTLS},
		{"bad filter", http.MethodGet, "/requests?limit=-1", nil, http.StatusBadRequest, CodeInvalidRequest},
		{"unknown log entry", http.MethodGet, "/requests/nope", nil, http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := api.call(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status, string(data))
			assert.Equal(t, tt.code, errorCode(t, data))
		})
	}
}

func TestRequestLogRoutes(t *testing.T) {
	api := newTestAPI(t)
	info := api.create(map[string]any{"host": "127.0.0.1", "port": 0, "autoStart": true, "handler": map[string]any{"type": "echo"}})

	assert.Equal(t, http.StatusOK, <-background(info.URL+"/logged"))
	require.Eventually(t, func() bool { return api.store.Count() == 1 }, time.Second, 5*time.Millisecond)

	status, data := api.call(http.MethodGet, fmt.Sprintf("/requests?instance=%d&outcome=responded", info.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var list RequestListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "/logged", list.Requests[0].Path)

	status, _ = api.call(http.MethodGet, "/requests/"+list.Requests[0].ID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, data = api.call(http.MethodDelete, "/requests", nil)
	require.Equal(t, http.StatusOK, status)
	var cleared ClearResponse
	require.NoError(t, json.Unmarshal(data, &cleared))
	assert.Equal(t, 1, cleared.Cleared)
}

func TestClassify(t *testing.T) {
	status, code := classify(bridge.ErrAlreadyCompleted)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeAlreadyCompleted, code)

	status, code = classify(fmt.Errorf("wrapped: %w", bridge.ErrInstanceDisposed))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, CodeInstanceDisposed, code)

	status, _ = classify(io.ErrUnexpectedEOF)
	assert.Equal(t, http.StatusInternalServerError, status)
}
