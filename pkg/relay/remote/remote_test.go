package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay"
	"github.com/getmockd/embedhttpd/pkg/relay/remote"
)

type fixture struct {
	bridge   *bridge.Bridge
	endpoint *remote.Endpoint
	server   *httptest.Server
	instance *bridge.Instance
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := bridge.New(bridge.WithRequestTimeout(2 * time.Second))
	ep := remote.NewEndpoint(b.Relay())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /instances/{id}/relay", func(w http.ResponseWriter, r *http.Request) {
		instanceID, err := message.ParseInstanceID(r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := ep.Attach(w, r, instanceID); errors.Is(err, relay.ErrSubscriberExists) {
			http.Error(w, err.Error(), http.StatusConflict)
		}
	})
	srv := httptest.NewServer(mux)

	instanceID, err := b.CreateInstance(bridge.Address{Host: "127.0.0.1"}, nil)
	require.NoError(t, err)
	inst, err := b.Instance(instanceID)
	require.NoError(t, err)

	t.Cleanup(func() {
		ep.Close()
		srv.Close()
		_ = b.Close()
	})
	return &fixture{bridge: b, endpoint: ep, server: srv, instance: inst}
}

func (f *fixture) relayURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/instances/" + f.instance.ID().String() + "/relay"
}

func (f *fixture) waitAttached(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.bridge.Relay().Subscribed(f.instance.ID())
	}, 2*time.Second, 5*time.Millisecond)
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestClient_ServesBridgedRequests(t *testing.T) {
	f := newFixture(t)

	attached := make(chan message.InstanceID, 1)
	client, err := remote.NewClient(f.relayURL(), handler.Echo(),
		remote.WithOnAttach(func(id message.InstanceID) { attached <- id }))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	assert.Equal(t, f.instance.ID(), <-attached)
	f.waitAttached(t)
	require.NoError(t, f.instance.Start())

	status, body := fetch(t, f.instance.URL()+"/hello?x=1")
	assert.Equal(t, http.StatusOK, status)

	var echo handler.EchoBody
	require.NoError(t, json.Unmarshal([]byte(body), &echo))
	assert.Equal(t, "GET", echo.Method)
	assert.Equal(t, "/hello", echo.Path)
	require.Eventually(t, func() bool { return client.Served() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Eventually(t, func() bool {
		return !f.bridge.Relay().Subscribed(f.instance.ID())
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEndpoint_RawProtocol(t *testing.T) {
	f := newFixture(t)

	conn, _, err := gorilla.DefaultDialer.Dial(f.relayURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	var env remote.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, remote.TypeAttached, env.Type)
	assert.Equal(t, f.instance.ID(), env.InstanceID)

	f.waitAttached(t)
	require.NoError(t, f.instance.Start())

	type reply struct {
		status int
		body   string
	}
	got := make(chan reply, 1)
	go func() {
		resp, err := http.Get(f.instance.URL() + "/raw")
		if err != nil {
			got <- reply{}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		got <- reply{resp.StatusCode, string(body)}
	}()

	require.NoError(t, conn.ReadJSON(&env))
	require.Equal(t, remote.TypeRequest, env.Type)
	assert.Equal(t, "/raw", env.Request.Path())

	require.NoError(t, conn.WriteJSON(remote.Envelope{
		Type:      remote.TypeResponse,
		RequestID: env.RequestID,
		Response:  message.NewResponse(http.StatusTeapot, nil, []byte("short and stout")),
	}))
	r := <-got
	assert.Equal(t, http.StatusTeapot, r.status)
	assert.Equal(t, "short and stout", r.body)

	// A second answer for the same request is reported back.
	require.NoError(t, conn.WriteJSON(remote.Envelope{
		Type:      remote.TypeResponse,
		RequestID: env.RequestID,
		Response:  message.NewResponse(http.StatusOK, nil, nil),
	}))
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, remote.TypeError, env.Type)
	assert.Contains(t, env.Error, "already completed")
}

func TestEndpoint_SecondAttachRejected(t *testing.T) {
	f := newFixture(t)

	first, _, err := gorilla.DefaultDialer.Dial(f.relayURL(), nil)
	require.NoError(t, err)
	defer first.Close()
	f.waitAttached(t)

	_, resp, err := gorilla.DefaultDialer.Dial(f.relayURL(), nil)
	require.ErrorIs(t, err, gorilla.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	client, err := remote.NewClient(f.relayURL(), handler.Echo())
	require.NoError(t, err)
	err = client.Run(context.Background())
	assert.ErrorIs(t, err, remote.ErrAttachRejected)
}

func TestEndpoint_DisconnectUnsubscribes(t *testing.T) {
	f := newFixture(t)

	conn, _, err := gorilla.DefaultDialer.Dial(f.relayURL(), nil)
	require.NoError(t, err)
	f.waitAttached(t)
	assert.Equal(t, 1, f.endpoint.Sessions())

	require.NoError(t, conn.WriteMessage(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "bye")))
	_ = conn.Close()

	require.Eventually(t, func() bool {
		return !f.bridge.Relay().Subscribed(f.instance.ID()) && f.endpoint.Sessions() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClient_EndsWhenInstanceDisposed(t *testing.T) {
	f := newFixture(t)

	client, err := remote.NewClient(f.relayURL(), handler.Echo())
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- client.Run(context.Background()) }()
	f.waitAttached(t)

	require.NoError(t, f.bridge.Dispose(f.instance.ID(), lifecycle.StopOptions{}))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after dispose")
	}
}

func TestClient_HandlerErrorBecomes500(t *testing.T) {
	f := newFixture(t)

	client, err := remote.NewClient(f.relayURL(), handler.Func(func(context.Context, *message.Request) (*message.Response, error) {
		return nil, errors.New("upstream exploded")
	}))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()
	f.waitAttached(t)
	require.NoError(t, f.instance.Start())

	status, body := fetch(t, f.instance.URL()+"/")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "upstream exploded")
	assert.EqualValues(t, 1, client.Failed())
}

func TestNewClient_Validation(t *testing.T) {
	_, err := remote.NewClient("", handler.Echo())
	assert.Error(t, err)
	_, err = remote.NewClient("ws://localhost/relay", nil)
	assert.Error(t, err)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := remote.DecodeEnvelope([]byte("{"))
	assert.Error(t, err)
	_, err = remote.DecodeEnvelope([]byte(`{"requestId":"x"}`))
	assert.Error(t, err)
}
