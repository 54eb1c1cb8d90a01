package handler

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// Auth types.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthBasic = "basic"
	AuthIP    = "ip"
)

// AuthSpec guards a handler with a simple credential check.
type AuthSpec struct {
	Type       string   `yaml:"type" json:"type"`
	Token      string   `yaml:"token,omitempty" json:"token,omitempty"`
	Username   string   `yaml:"username,omitempty" json:"username,omitempty"`
	Password   string   `yaml:"password,omitempty" json:"password,omitempty"`
	AllowedIPs []string `yaml:"allowedIps,omitempty" json:"allowedIps,omitempty"`
}

// Validate checks that the fields required by Type are set.
func (a *AuthSpec) Validate() error {
	switch a.Type {
	case "", AuthNone:
	case AuthToken:
		if a.Token == "" {
			return errors.New("token auth requires a token")
		}
	case AuthBasic:
		if a.Username == "" {
			return errors.New("basic auth requires a username")
		}
	case AuthIP:
		if len(a.AllowedIPs) == 0 {
			return errors.New("ip auth requires allowedIps")
		}
	default:
		return fmt.Errorf("unknown auth type %q", a.Type)
	}
	return nil
}

func (a *AuthSpec) check(req *message.Request) error {
	switch a.Type {
	case "", AuthNone:
		return nil
	case AuthToken:
		if !constantEqual(req.Header.Get("X-Auth-Token"), a.Token) {
			return errors.New("invalid or missing auth token")
		}
	case AuthBasic:
		auth := req.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Basic ") {
			return errors.New("missing basic auth header")
		}
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			return errors.New("invalid basic auth encoding")
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok || !constantEqual(user, a.Username) || !constantEqual(pass, a.Password) {
			return errors.New("invalid credentials")
		}
	case AuthIP:
		if !slices.Contains(a.AllowedIPs, clientIP(req)) {
			return errors.New("IP not allowed")
		}
	default:
		return errors.New("unknown auth type")
	}
	return nil
}

func constantEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-Ip, then the
// connection's remote address.
func clientIP(req *message.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if xr := req.Header.Get("X-Real-Ip"); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// RequireAuth answers 401 for requests that fail spec before they reach next.
func RequireAuth(spec *AuthSpec, next Handler) Handler {
	return Func(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		if err := spec.check(req); err != nil {
			resp := message.NewResponse(http.StatusUnauthorized, nil, []byte(err.Error()))
			if spec.Type == AuthBasic {
				resp.Header.Set("WWW-Authenticate", `Basic realm="embedhttpd"`)
			}
			return resp, nil
		}
		return next.ServeMessage(ctx, req)
	})
}
