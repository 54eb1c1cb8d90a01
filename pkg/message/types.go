package message

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Defaults applied when the handler side leaves response fields unset.
const (
	DefaultStatus      = http.StatusOK
	DefaultContentType = "text/plain"

	// DefaultMaxBodyBytes bounds request and streamed response bodies.
	DefaultMaxBodyBytes int64 = 10 << 20
)

// InstanceID identifies a listening instance for the lifetime of the process.
type InstanceID int64

// String returns the decimal form of the ID.
func (id InstanceID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseInstanceID parses the decimal form produced by String.
func ParseInstanceID(s string) (InstanceID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid instance id %q", s)
	}
	return InstanceID(n), nil
}

// Request is the canonical form of an inbound HTTP request.
type Request struct {
	Method     string `json:"method"`
	URL        string `json:"url"`
	Header     Header `json:"headers,omitempty"`
	Body       []byte `json:"body,omitempty"`
	Host       string `json:"host,omitempty"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
}

// Path returns the path component of the request URL.
func (r *Request) Path() string {
	u, err := url.ParseRequestURI(r.URL)
	if err != nil {
		return r.URL
	}
	return u.Path
}

// Query returns the parsed query string of the request URL.
func (r *Request) Query() url.Values {
	u, err := url.ParseRequestURI(r.URL)
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

// Response is the canonical form of a handler's reply.
//
// Stream, when set, is read to completion and its bytes replace Body during
// Normalize. It never crosses a process boundary.
type Response struct {
	Status int       `json:"status,omitempty"`
	Header Header    `json:"headers,omitempty"`
	Body   []byte    `json:"body,omitempty"`
	Stream io.Reader `json:"-"`
}

// NewResponse builds a response from a flat header map.
func NewResponse(status int, headers map[string]string, body []byte) *Response {
	return &Response{Status: status, Header: HeaderFromMap(headers), Body: body}
}

// Normalize applies response defaults and buffers Stream into Body.
// A maxBody of zero or less selects DefaultMaxBodyBytes.
func (r *Response) Normalize(maxBody int64) error {
	if r.Status == 0 {
		r.Status = DefaultStatus
	}
	if r.Status < 100 || r.Status > 999 {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, r.Status)
	}
	if r.Header == nil {
		r.Header = Header{}
	}
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", DefaultContentType)
	}
	if r.Stream != nil {
		body, err := readLimited(r.Stream, maxBody)
		if closer, ok := r.Stream.(io.Closer); ok {
			_ = closer.Close()
		}
		r.Stream = nil
		if err != nil {
			return err
		}
		r.Body = body
	}
	return nil
}

// Clone returns a deep copy of the response. Stream is not copied.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   bytes.Clone(r.Body),
	}
}

func readLimited(rd io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}
