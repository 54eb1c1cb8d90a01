package handler

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// FromHTTP adapts an http.Handler. The request is rebuilt with
// message.EncodeRequest and the handler writes into a recorder.
func FromHTTP(h http.Handler) Handler {
	return Func(func(ctx context.Context, req *message.Request) (*message.Response, error) {
		httpReq, err := message.EncodeRequest(ctx, req, "")
		if err != nil {
			return nil, err
		}

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httpReq)

		header := message.HeaderFromHTTP(rr.Header())
		return &message.Response{
			Status: rr.Code,
			Header: header,
			Body:   rr.Body.Bytes(),
		}, nil
	})
}
