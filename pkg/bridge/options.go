package bridge

import (
	"log/slog"
	"time"

	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/metrics"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		if log != nil {
			b.log = log
		}
	}
}

// WithRequestTimeout sets how long a request waits for its response.
func WithRequestTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.requestTimeout = d
		}
	}
}

// WithMaxBodyBytes limits request and response bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.maxBody = n
		}
	}
}

// WithStopDefaults sets the stop options used when callers pass none and
// by reload and orphan cleanup.
func WithStopDefaults(opts lifecycle.StopOptions) Option {
	return func(b *Bridge) {
		b.stopDefaults = opts.WithDefaults()
	}
}

// WithRequestLog records every bridged request in store.
func WithRequestLog(store requestlog.Logger) Option {
	return func(b *Bridge) {
		b.requests = store
	}
}

// WithMetrics reports bridge metrics.
func WithMetrics(m *metrics.Bridge) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// InstanceOption configures one instance at creation.
type InstanceOption func(*instanceConfig)

type instanceConfig struct {
	name           string
	maxConnections int
}

// WithName labels the instance.
func WithName(name string) InstanceOption {
	return func(c *instanceConfig) {
		c.name = name
	}
}

// WithMaxConnections caps concurrent connections on the instance.
func WithMaxConnections(n int) InstanceOption {
	return func(c *instanceConfig) {
		c.maxConnections = n
	}
}
