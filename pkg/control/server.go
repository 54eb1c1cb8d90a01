package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/metrics"
	"github.com/getmockd/embedhttpd/pkg/relay/remote"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRequestStore serves the request log from store.
func WithRequestStore(store requestlog.Store) Option {
	return func(s *Server) {
		s.requests = store
	}
}

// WithMetricsRegistry serves registry at GET /metrics.
func WithMetricsRegistry(registry *metrics.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithVersion sets the version reported by GET /health.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// Server is the management API of one bridge.
type Server struct {
	bridge   *bridge.Bridge
	endpoint *remote.Endpoint
	requests requestlog.Store
	registry *metrics.Registry
	log      *slog.Logger
	version  string
	started  time.Time
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	addr       string
}

// New creates the management API for b.
func New(b *bridge.Bridge, opts ...Option) *Server {
	s := &Server{
		bridge:  b,
		log:     logging.Nop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.log, "control")
	s.endpoint = remote.NewEndpoint(b.Relay(), remote.WithEndpointLogger(logging.Component(s.log, "remote")))

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.handler = s.withMiddleware(mux)
	return s
}

// Handler returns the API as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves the API in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.log.Info("management API listening", "addr", s.addr)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("management API error", "error", err)
		}
	}()
	return nil
}

// Addr returns the address the API listens on, once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown disconnects remote handlers and stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.endpoint.Close()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
