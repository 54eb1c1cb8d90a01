package client_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/config"
	"github.com/getmockd/embedhttpd/pkg/control"
	"github.com/getmockd/embedhttpd/pkg/control/client"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay/remote"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

func setup(t *testing.T) (*client.Client, *bridge.Bridge) {
	t.Helper()
	store := requestlog.NewMemoryStore(50)
	b := bridge.New(bridge.WithRequestTimeout(2*time.Second), bridge.WithRequestLog(store))
	s := control.New(b, control.WithRequestStore(store), control.WithVersion("1.2.3"))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		srv.Close()
		_ = b.Close()
	})
	return client.New(srv.URL, client.WithTimeout(5*time.Second)), b
}

func loopback(handlerType string, autoStart bool) *control.CreateInstanceRequest {
	port := 0
	return &config.InstanceConfig{
		Host:      "127.0.0.1",
		Port:      &port,
		AutoStart: autoStart,
		Handler:   &handler.Spec{Type: handlerType},
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealth(t *testing.T) {
	c, _ := setup(t)
	health, err := c.Health(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.2.3", health.Version)
}

func TestInstanceLifecycle(t *testing.T) {
	c, _ := setup(t)
	ctx := t.Context()

	info, err := c.CreateInstance(ctx, loopback(handler.TypeEcho, false))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Created, info.State)

	info, err = c.StartInstance(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Running, info.State)

	status, _ := get(t, info.URL+"/ping")
	assert.Equal(t, http.StatusOK, status)

	list, err := c.ListInstances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)

	info, err = c.StopInstance(ctx, info.ID, control.StopRequest{})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.Stopped, info.State)

	require.NoError(t, c.DisposeInstance(ctx, info.ID, control.StopRequest{}))

	_, err = c.GetInstance(ctx, info.ID)
	require.Error(t, err)
	assert.True(t, client.IsCode(err, control.CodeInstanceDisposed))

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = c.GetInstance(ctx, info.ID+100)
	assert.True(t, client.IsCode(err, control.CodeInstanceNotFound))
}

func TestManualRespond(t *testing.T) {
	c, b := setup(t)
	ctx := t.Context()

	info, err := c.CreateInstance(ctx, loopback(handler.TypeManual, true))
	require.NoError(t, err)

	done := make(chan string, 1)
	go func() {
		resp, err := http.Get(info.URL + "/manual")
		if err != nil {
			done <- err.Error()
			return
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		done <- string(body)
	}()

	inst, err := b.Instance(info.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return inst.Pending() == 1 }, 2*time.Second, 5*time.Millisecond)

	pending, err := c.Pending(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, 1, pending.Count)

	requestID := pending.Pending[0].RequestID
	require.NoError(t, c.Respond(ctx, info.ID, requestID, control.RespondRequest{Status: 200, Body: "answered"}))
	assert.Equal(t, "answered", <-done)

	err = c.Respond(ctx, info.ID, requestID, control.RespondRequest{})
	assert.True(t, client.IsCode(err, control.CodeAlreadyCompleted), "got %v", err)
}

func TestRemoteHandlerViaRelayURL(t *testing.T) {
	c, _ := setup(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	info, err := c.CreateInstance(ctx, loopback(handler.TypeRemote, true))
	require.NoError(t, err)
	assert.False(t, info.HandlerAttached)
	assert.True(t, strings.HasPrefix(c.RelayURL(info.ID), "ws://"))

	attached := make(chan message.InstanceID, 1)
	rc, err := remote.NewClient(c.RelayURL(info.ID), handler.Func(func(_ context.Context, req *message.Request) (*message.Response, error) {
		return message.NewResponse(http.StatusOK, nil, []byte("remote "+req.Path())), nil
	}), remote.WithOnAttach(func(id message.InstanceID) { attached <- id }))
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- rc.Run(ctx) }()

	select {
	case id := <-attached:
		assert.Equal(t, info.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("remote handler did not attach")
	}

	status, body := get(t, info.URL+"/hello")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "remote /hello", body)

	got, err := c.GetInstance(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, got.HandlerAttached)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("remote handler did not stop")
	}
}

func TestRemoveAndRequests(t *testing.T) {
	c, _ := setup(t)
	ctx := t.Context()

	info, err := c.CreateInstance(ctx, loopback(handler.TypeEcho, true))
	require.NoError(t, err)
	status, _ := get(t, info.URL+"/a")
	require.Equal(t, http.StatusOK, status)

	var list *control.RequestListResponse
	require.Eventually(t, func() bool {
		list, err = c.ListRequests(ctx, &requestlog.Filter{InstanceID: int64(info.ID), Method: http.MethodGet})
		return err == nil && list.Count == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "/a", list.Requests[0].Path)

	cleared, err := c.ClearRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	require.NoError(t, c.RemoveInstance(ctx, info.ID, false))
	err = c.RemoveInstance(ctx, info.ID, false)
	assert.True(t, client.IsCode(err, control.CodeInstanceDisposed))
}

func TestUnreachable(t *testing.T) {
	c := client.New("http://127.0.0.1:1", client.WithTimeout(time.Second))
	_, err := c.Health(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnreachable)
}
