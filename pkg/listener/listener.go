// Package listener owns the network side of an instance: the bound TCP
// socket, optional TLS, and the net/http server that accepts connections.
//
// The socket is bound when the instance is created so address conflicts
// surface synchronously, and rebound on the same resolved address when a
// stopped instance starts again.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/getmockd/embedhttpd/pkg/logging"
)

// Error is a sentinel error type for listener failures.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

// ErrAddressInUse is returned when the requested host and port are taken.
const ErrAddressInUse = Error("address in use")

// Defaults for a new listener.
const (
	DefaultHost              = "0.0.0.0"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
)

// Config describes where and how to listen.
type Config struct {
	Host string
	// Port 0 asks the system for a free port. The allocated port is kept
	// for later rebinds.
	Port int
	// TLS, when set, serves HTTPS.
	TLS *tls.Config
	// MaxConnections caps concurrently accepted connections. 0 is unlimited.
	MaxConnections    int
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// Listener is a rebindable HTTP listener.
type Listener struct {
	log *slog.Logger

	mu        sync.Mutex
	cfg       Config
	ln        net.Listener
	srv       *http.Server
	serveDone chan struct{}
}

// New creates an unbound listener.
func New(cfg Config, opts ...Option) *Listener {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	l := &Listener{cfg: cfg, log: logging.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bind opens the socket if it is not already open.
func (l *Listener) Bind() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bindLocked()
}

func (l *Listener) bindLocked() error {
	if l.ln != nil {
		return nil
	}
	addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if isAddrInUse(err) {
			return fmt.Errorf("%w: %s", ErrAddressInUse, addr)
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		l.cfg.Port = tcp.Port
	}
	l.ln = ln
	return nil
}

// Serve starts accepting connections for h in a background goroutine,
// binding first when needed.
func (l *Listener) Serve(h http.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.srv != nil {
		return errors.New("listener already serving")
	}
	if err := l.bindLocked(); err != nil {
		return err
	}

	ln := l.ln
	if l.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, l.cfg.MaxConnections)
	}
	if l.cfg.TLS != nil {
		ln = tls.NewListener(ln, l.cfg.TLS)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: l.cfg.ReadHeaderTimeout,
		IdleTimeout:       l.cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(l.log.Handler(), slog.LevelDebug),
	}
	done := make(chan struct{})
	l.srv = srv
	l.serveDone = done

	l.log.Info("listener serving", "addr", l.addrLocked(), "tls", l.cfg.TLS != nil)
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting connections and waits for active ones to finish
// until ctx is done, then closes whatever remains. The socket is released
// either way.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	srv, done := l.srv, l.serveDone
	l.srv, l.serveDone = nil, nil
	if srv == nil {
		err := l.closeSocketLocked()
		l.mu.Unlock()
		return err
	}
	l.ln = nil
	l.mu.Unlock()

	err := srv.Shutdown(ctx)
	if err != nil {
		l.log.Debug("graceful shutdown incomplete, closing connections", "error", err)
		err = errors.Join(err, srv.Close())
	}
	<-done
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// An expired stop timeout ends in a forced close.
		return nil
	}
	return err
}

// Close closes the socket and every connection immediately.
func (l *Listener) Close() error {
	l.mu.Lock()
	srv, done := l.srv, l.serveDone
	l.srv, l.serveDone = nil, nil
	if srv == nil {
		err := l.closeSocketLocked()
		l.mu.Unlock()
		return err
	}
	l.ln = nil
	l.mu.Unlock()

	err := srv.Close()
	<-done
	return err
}

func (l *Listener) closeSocketLocked() error {
	if l.ln == nil {
		return nil
	}
	err := l.ln.Close()
	l.ln = nil
	return err
}

// SetTLS replaces the TLS configuration used by the next Serve.
func (l *Listener) SetTLS(cfg *tls.Config) {
	l.mu.Lock()
	l.cfg.TLS = cfg
	l.mu.Unlock()
}

// Addr returns the resolved host:port.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addrLocked()
}

func (l *Listener) addrLocked() string {
	return net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port))
}

// Port returns the resolved port.
func (l *Listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.Port
}

// Scheme returns "https" when TLS is configured and "http" otherwise.
func (l *Listener) Scheme() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cfg.TLS != nil {
		return "https"
	}
	return "http"
}

// Bound reports whether the socket is open.
func (l *Listener) Bound() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil
}
