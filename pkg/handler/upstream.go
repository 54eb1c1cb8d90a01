package handler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// DefaultUpstreamTimeout bounds one forwarded request.
const DefaultUpstreamTimeout = 30 * time.Second

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Upstream forwards bridged requests to an HTTP server.
type Upstream struct {
	base    string
	client  *http.Client
	maxBody int64
}

// UpstreamOption configures an Upstream.
type UpstreamOption func(*Upstream)

// WithUpstreamTimeout sets the per-request timeout. Zero keeps the default.
func WithUpstreamTimeout(d time.Duration) UpstreamOption {
	return func(u *Upstream) {
		if d > 0 {
			u.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) UpstreamOption {
	return func(u *Upstream) {
		if c != nil {
			u.client = c
		}
	}
}

// NewUpstream creates a forwarding handler for base, an absolute http or
// https URL. A path in base prefixes every forwarded request path.
func NewUpstream(base string, opts ...UpstreamOption) (*Upstream, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q", base)
	}
	up := &Upstream{
		base:    strings.TrimSuffix(u.String(), "/"),
		client:  &http.Client{Timeout: DefaultUpstreamTimeout},
		maxBody: message.DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(up)
	}
	return up, nil
}

// ServeMessage implements Handler.
func (u *Upstream) ServeMessage(ctx context.Context, req *message.Request) (*message.Response, error) {
	out := *req
	out.Header = req.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	if out.Header == nil {
		out.Header = message.Header{}
	}
	if req.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
			out.Header.Set("X-Forwarded-For", host)
		}
	}

	httpReq, err := message.EncodeRequest(ctx, &out, u.base)
	if err != nil {
		return nil, err
	}
	res, err := u.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	resp, err := message.DecodeResponse(res, u.maxBody)
	if err != nil {
		return nil, err
	}
	for _, h := range hopHeaders {
		resp.Header.Del(h)
	}
	return resp, nil
}
