// Package handler contains the handler-side contract of the bridge and the
// built-in handlers that can be attached to an instance from configuration.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// Handler computes a response for a bridged request. It runs on the
// handler side and may take as long as it needs; the bridge enforces the
// request deadline on the native side.
type Handler interface {
	ServeMessage(ctx context.Context, req *message.Request) (*message.Response, error)
}

// Func adapts a function to the Handler interface.
type Func func(ctx context.Context, req *message.Request) (*message.Response, error)

// ServeMessage implements Handler.
func (f Func) ServeMessage(ctx context.Context, req *message.Request) (*message.Response, error) {
	return f(ctx, req)
}

// Handler types accepted by New.
const (
	TypeEcho     = "echo"
	TypeStatic   = "static"
	TypeUpstream = "upstream"
	TypeRemote   = "remote"

	// TypeManual leaves requests pending until they are answered through
	// the management API.
	TypeManual = "manual"
)

// ErrUnknownType is returned by New for an unrecognized handler type.
var ErrUnknownType = errors.New("unknown handler type")

// Spec declares a built-in handler.
type Spec struct {
	Type     string            `yaml:"type" json:"type"`
	Status   int               `yaml:"status,omitempty" json:"status,omitempty"`
	Body     string            `yaml:"body,omitempty" json:"body,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Upstream string            `yaml:"upstream,omitempty" json:"upstream,omitempty"`
	Timeout  string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Auth     *AuthSpec         `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// New builds the handler declared by spec. A nil spec, an empty type,
// TypeRemote and TypeManual all return a nil Handler: the instance's
// handler side lives outside the process.
func New(spec *Spec) (Handler, error) {
	if spec == nil {
		return nil, nil
	}

	var h Handler
	switch strings.ToLower(spec.Type) {
	case "", TypeRemote, TypeManual:
		return nil, nil
	case TypeEcho:
		h = Echo()
	case TypeStatic:
		h = Static(message.NewResponse(spec.Status, spec.Headers, []byte(spec.Body)))
	case TypeUpstream:
		var timeout time.Duration
		if spec.Timeout != "" {
			d, err := time.ParseDuration(spec.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid upstream timeout %q: %w", spec.Timeout, err)
			}
			timeout = d
		}
		u, err := NewUpstream(spec.Upstream, WithUpstreamTimeout(timeout))
		if err != nil {
			return nil, err
		}
		h = u
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, spec.Type)
	}

	if spec.Auth != nil {
		if err := spec.Auth.Validate(); err != nil {
			return nil, err
		}
		h = RequireAuth(spec.Auth, h)
	}
	return h, nil
}
