package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
)

// ErrAttachRejected is returned by Client.Run when the endpoint refuses
// the attachment.
var ErrAttachRejected = errors.New("attach rejected")

// DefaultRequestTimeout bounds one handler invocation on the client.
const DefaultRequestTimeout = 60 * time.Second

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the logger.
func WithClientLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRequestTimeout bounds each handler invocation.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithHeader adds headers to the WebSocket handshake.
func WithHeader(h http.Header) ClientOption {
	return func(c *Client) {
		c.header = h
	}
}

// WithOnAttach registers a callback run once the endpoint accepts the
// attachment.
func WithOnAttach(fn func(message.InstanceID)) ClientOption {
	return func(c *Client) {
		c.onAttach = fn
	}
}

// Client is a remote handler side.
type Client struct {
	url            string
	handler        handler.Handler
	log            *slog.Logger
	requestTimeout time.Duration
	header         http.Header
	onAttach       func(message.InstanceID)

	served atomic.Int64
	failed atomic.Int64
}

// NewClient creates a client that answers requests from the relay endpoint
// at url with h.
func NewClient(url string, h handler.Handler, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.New("relay url is required")
	}
	if h == nil {
		return nil, errors.New("handler is required")
	}
	c := &Client{
		url:            url,
		handler:        h,
		log:            logging.Nop(),
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Served returns the number of requests answered.
func (c *Client) Served() int64 { return c.served.Load() }

// Failed returns the number of requests whose handler returned an error.
func (c *Client) Failed() int64 { return c.failed.Load() }

// Run attaches and serves requests until ctx is done or the endpoint
// closes the connection. A close by either side returns nil.
func (c *Client) Run(ctx context.Context) error {
	conn, resp, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPHeader: c.header,
	})
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: instance already has a handler", ErrAttachRejected)
		}
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(DefaultMaxMessageSize)

	_, data, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read attach message: %w", err)
	}
	env, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}
	switch env.Type {
	case TypeAttached:
	case TypeError:
		return fmt.Errorf("%w: %s", ErrAttachRejected, env.Error)
	default:
		return fmt.Errorf("%w: unexpected %q message", ErrAttachRejected, env.Type)
	}

	log := logging.ForInstance(c.log, int64(env.InstanceID))
	log.Info("attached to relay", "url", c.url)
	if c.onAttach != nil {
		c.onAttach(env.InstanceID)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "client shutdown")
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Info("relay closed the connection")
				return nil
			}
			return fmt.Errorf("relay connection lost: %w", err)
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			log.Warn("dropping malformed envelope", "error", err)
			continue
		}
		switch env.Type {
		case TypeRequest:
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.handle(ctx, conn, log, env)
			}()
		case TypeError:
			log.Warn("relay reported an error", logging.KeyRequestID, env.RequestID, "error", env.Error)
		}
	}
}

func (c *Client) handle(ctx context.Context, conn *websocket.Conn, log *slog.Logger, env *Envelope) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.serve(ctx, env.Request)
	if err != nil {
		c.failed.Add(1)
		log.Warn("handler failed", logging.KeyRequestID, env.RequestID, "error", err)
		resp = message.NewResponse(http.StatusInternalServerError, map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		}, []byte(err.Error()))
	}
	if resp == nil {
		resp = &message.Response{}
	}
	if err := resp.Normalize(0); err != nil {
		resp = message.NewResponse(http.StatusInternalServerError, nil, []byte(err.Error()))
	}

	out := &Envelope{Type: TypeResponse, InstanceID: env.InstanceID, RequestID: env.RequestID, Response: resp}
	data, err := out.Encode()
	if err != nil {
		log.Error("failed to encode response", logging.KeyRequestID, env.RequestID, "error", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		log.Warn("failed to send response", logging.KeyRequestID, env.RequestID, "error", err)
		return
	}
	c.served.Add(1)
}

func (c *Client) serve(ctx context.Context, req *message.Request) (resp *message.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, err = nil, fmt.Errorf("handler panic: %v", rec)
		}
	}()
	if req == nil {
		return nil, message.ErrNilMessage
	}
	return c.handler.ServeMessage(ctx, req)
}
