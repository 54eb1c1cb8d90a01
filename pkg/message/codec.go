package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// hasNoBody reports whether requests with method never carry a body.
func hasNoBody(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// DecodeRequest translates a native request into its canonical form.
// The body is read up to maxBody bytes; GET and HEAD bodies are ignored.
func DecodeRequest(r *http.Request, maxBody int64) (*Request, error) {
	if r == nil {
		return nil, ErrNilMessage
	}
	req := &Request{
		Method:     r.Method,
		URL:        r.URL.RequestURI(),
		Header:     HeaderFromHTTP(r.Header),
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
	}
	if hasNoBody(r.Method) || r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	body, err := readLimited(r.Body, maxBody)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return nil, err
	}
	req.Body = body
	return req, nil
}

// EncodeRequest builds a net/http request from the canonical form. The URL
// is resolved against base when it is relative; base may be empty.
func EncodeRequest(ctx context.Context, req *Request, base string) (*http.Request, error) {
	if req == nil {
		return nil, ErrNilMessage
	}
	var body io.Reader = http.NoBody
	if len(req.Body) > 0 && !hasNoBody(req.Method) {
		body = bytes.NewReader(req.Body)
	}
	target := base + req.URL
	if target == "" {
		target = "/"
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.CopyTo(hr.Header)
	if base == "" && req.Host != "" {
		hr.Host = req.Host
	}
	hr.RemoteAddr = req.RemoteAddr
	return hr, nil
}

// EncodeResponse writes the canonical response to the native connection.
// Defaults are applied first, so a zero Response writes 200 text/plain.
func EncodeResponse(w http.ResponseWriter, resp *Response) error {
	if resp == nil {
		return ErrNilMessage
	}
	if err := resp.Normalize(0); err != nil {
		return err
	}
	h := w.Header()
	resp.Header.CopyTo(h)
	h.Del("Transfer-Encoding")
	if !bodyAllowed(resp.Status) {
		h.Del("Content-Length")
		w.WriteHeader(resp.Status)
		return nil
	}
	h.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	if len(resp.Body) == 0 {
		return nil
	}
	if _, err := w.Write(resp.Body); err != nil {
		return fmt.Errorf("writing response body: %w", err)
	}
	return nil
}

// bodyAllowed mirrors the statuses net/http refuses to write a body for.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// DecodeResponse translates a net/http response into its canonical form
// and closes its body.
func DecodeResponse(res *http.Response, maxBody int64) (*Response, error) {
	if res == nil {
		return nil, ErrNilMessage
	}
	defer func() { _ = res.Body.Close() }()
	body, err := readLimited(res.Body, maxBody)
	if err != nil {
		return nil, err
	}
	header := HeaderFromHTTP(res.Header)
	header.Del("Content-Length")
	return &Response{Status: res.StatusCode, Header: header, Body: body}, nil
}
