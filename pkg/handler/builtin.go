package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// EchoBody is the JSON document returned by the echo handler.
type EchoBody struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body,omitempty"`
	RemoteAddr string            `json:"remoteAddr,omitempty"`
}

// Echo returns a handler that describes the request back as JSON.
func Echo() Handler {
	return Func(func(_ context.Context, req *message.Request) (*message.Response, error) {
		body, err := json.Marshal(EchoBody{
			Method:     req.Method,
			URL:        req.URL,
			Path:       req.Path(),
			Headers:    req.Header.Flatten(),
			Body:       string(req.Body),
			RemoteAddr: req.RemoteAddr,
		})
		if err != nil {
			return nil, err
		}
		return message.NewResponse(http.StatusOK, map[string]string{"Content-Type": "application/json"}, body), nil
	})
}

// Static returns a handler that always answers with a copy of resp.
func Static(resp *message.Response) Handler {
	return Func(func(context.Context, *message.Request) (*message.Response, error) {
		return resp.Clone(), nil
	})
}
