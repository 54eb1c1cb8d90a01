package control

import (
	"net/http"
	"strconv"

	"github.com/getmockd/embedhttpd/pkg/httputil"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	if s.requests == nil {
		httputil.WriteOK(w, RequestListResponse{Requests: []*requestlog.Entry{}})
		return
	}
	filter, err := parseRequestFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	entries := s.requests.List(filter)
	if entries == nil {
		entries = []*requestlog.Entry{}
	}
	httputil.WriteOK(w, RequestListResponse{
		Requests: entries,
		Count:    len(entries),
		Total:    s.requests.Count(),
	})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	var entry *requestlog.Entry
	if s.requests != nil {
		entry = s.requests.Get(r.PathValue("id"))
	}
	if entry == nil {
		httputil.WriteNotFound(w, CodeNotFound, "request not found in log")
		return
	}
	httputil.WriteOK(w, entry)
}

func (s *Server) handleClearRequests(w http.ResponseWriter, _ *http.Request) {
	cleared := 0
	if s.requests != nil {
		cleared = s.requests.Count()
		s.requests.Clear()
	}
	httputil.WriteOK(w, ClearResponse{Cleared: cleared})
}

// parseRequestFilter reads instance, outcome, method, path, status,
// hasError, limit and offset from the query string.
func parseRequestFilter(r *http.Request) (*requestlog.Filter, error) {
	q := r.URL.Query()
	f := &requestlog.Filter{
		Outcome: q.Get("outcome"),
		Method:  q.Get("method"),
		Path:    q.Get("path"),
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"status", &f.StatusCode},
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	}
	for _, p := range ints {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, &paramError{p.key, v}
			}
			*p.dst = n
		}
	}
	if v := q.Get("instance"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, &paramError{"instance", v}
		}
		f.InstanceID = n
	}
	if v := q.Get("hasError"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &paramError{"hasError", v}
		}
		f.HasError = &b
	}
	return f, nil
}

type paramError struct {
	key, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.key + " parameter: " + strconv.Quote(e.value)
}
