package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay"
)

// Defaults for Endpoint and Client.
const (
	// DefaultMaxMessageSize leaves room for a maximum-size body after JSON
	// base64 encoding.
	DefaultMaxMessageSize = 32 << 20
	DefaultWriteTimeout   = 10 * time.Second
)

// ErrUpgradeFailed is returned by Attach when the WebSocket handshake
// fails. The handshake has already written its own error response.
var ErrUpgradeFailed = errors.New("websocket upgrade failed")

// EndpointOption configures an Endpoint.
type EndpointOption func(*Endpoint)

// WithEndpointLogger sets the logger.
func WithEndpointLogger(log *slog.Logger) EndpointOption {
	return func(e *Endpoint) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMaxMessageSize limits incoming frames.
func WithMaxMessageSize(n int64) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.maxMessageSize = n
		}
	}
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		if d > 0 {
			e.writeTimeout = d
		}
	}
}

// Endpoint attaches WebSocket connections to the relay as handler sides.
type Endpoint struct {
	relay          *relay.Relay
	log            *slog.Logger
	maxMessageSize int64
	writeTimeout   time.Duration

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

// NewEndpoint creates an endpoint publishing into r.
func NewEndpoint(r *relay.Relay, opts ...EndpointOption) *Endpoint {
	e := &Endpoint{
		relay:          r,
		log:            logging.Nop(),
		maxMessageSize: DefaultMaxMessageSize,
		writeTimeout:   DefaultWriteTimeout,
		sessions:       make(map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach upgrades the request and serves instanceID's handler side until
// the connection closes, the instance is released or the endpoint closes.
// When the instance already has a subscriber it returns
// relay.ErrSubscriberExists without touching w.
func (e *Endpoint) Attach(w http.ResponseWriter, r *http.Request, instanceID message.InstanceID) error {
	if e.relay.Subscribed(instanceID) {
		return fmt.Errorf("%w: instance %s", relay.ErrSubscriberExists, instanceID)
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpgradeFailed, err)
	}
	conn.SetReadLimit(e.maxMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &session{
		endpoint:   e,
		conn:       conn,
		instanceID: instanceID,
		log:        logging.ForInstance(e.log, int64(instanceID)).With("remote", r.RemoteAddr),
	}

	sub, err := e.relay.Subscribe(instanceID, "remote "+r.RemoteAddr, s.forward)
	if err != nil {
		s.send(ctx, &Envelope{Type: TypeError, InstanceID: instanceID, Error: err.Error()})
		_ = conn.Close(websocket.StatusPolicyViolation, "instance already has a handler")
		return nil
	}
	defer sub.Unsubscribe()

	if !e.track(s) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return nil
	}
	defer e.untrack(s)

	go func() {
		select {
		case <-sub.Done():
			_ = conn.Close(websocket.StatusGoingAway, "instance released")
		case <-ctx.Done():
		}
	}()

	s.send(ctx, &Envelope{Type: TypeAttached, InstanceID: instanceID})
	s.log.Info("remote handler attached")
	s.readLoop(ctx)
	s.log.Info("remote handler detached")
	return nil
}

// Close disconnects every attached handler.
func (e *Endpoint) Close() {
	e.mu.Lock()
	e.closed = true
	sessions := make([]*session, 0, len(e.sessions))
	for s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		_ = s.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// Sessions returns the number of attached handlers.
func (e *Endpoint) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Endpoint) track(s *session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.sessions[s] = struct{}{}
	return true
}

func (e *Endpoint) untrack(s *session) {
	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()
}

// session is one attached connection.
type session struct {
	endpoint   *Endpoint
	conn       *websocket.Conn
	instanceID message.InstanceID
	log        *slog.Logger
}

// forward is the relay subscriber. A failed write leaves the request to
// time out on the native side.
func (s *session) forward(ev relay.RequestArrived) {
	ctx, cancel := context.WithTimeout(context.Background(), s.endpoint.writeTimeout)
	defer cancel()
	s.send(ctx, &Envelope{
		Type:       TypeRequest,
		InstanceID: ev.InstanceID,
		RequestID:  ev.RequestID,
		Request:    ev.Request,
	})
}

func (s *session) readLoop(ctx context.Context) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.log.Debug("remote handler read failed", "error", err)
			}
			return
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			s.send(ctx, &Envelope{Type: TypeError, Error: err.Error()})
			continue
		}
		if env.Type != TypeResponse {
			continue
		}

		err = s.endpoint.relay.PublishResponse(relay.ResponseReady{
			InstanceID: s.instanceID,
			RequestID:  env.RequestID,
			Response:   env.Response,
		})
		if err != nil {
			s.send(ctx, &Envelope{Type: TypeError, RequestID: env.RequestID, Error: err.Error()})
		}
	}
}

func (s *session) send(ctx context.Context, env *Envelope) {
	data, err := env.Encode()
	if err != nil {
		s.log.Error("failed to encode envelope", "type", env.Type, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.endpoint.writeTimeout)
	defer cancel()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.log.Debug("failed to write envelope",
			"type", env.Type, logging.KeyRequestID, env.RequestID, "error", err)
	}
}
