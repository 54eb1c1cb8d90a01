package message

import (
	"net/http"
	"slices"
	"sort"
)

// multiValued lists header keys where every value is significant and
// repeated values must not be collapsed.
var multiValued = map[string]bool{
	"Set-Cookie":         true,
	"Www-Authenticate":   true,
	"Proxy-Authenticate": true,
	"Via":                true,
	"Warning":            true,
	"Link":               true,
	"Vary":               true,
}

// IsMultiValued reports whether repeated values of key are all kept.
func IsMultiValued(key string) bool {
	return multiValued[http.CanonicalHeaderKey(key)]
}

// Header is a case-normalized header multimap. Keys are canonical MIME
// header keys. Single-valued keys hold at most one value, the first one
// seen.
type Header map[string][]string

// HeaderFromHTTP normalizes a net/http header.
func HeaderFromHTTP(h http.Header) Header {
	out := make(Header, len(h))
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

// HeaderFromMap builds a header from a flat key/value map.
func HeaderFromMap(m map[string]string) Header {
	out := make(Header, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic first-value-wins when two keys differ only by case.
	sort.Strings(keys)
	for _, k := range keys {
		out.Add(k, m[k])
	}
	return out
}

// Get returns the first value for key.
func (h Header) Get(key string) string {
	vs := h[http.CanonicalHeaderKey(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for key.
func (h Header) Values(key string) []string {
	return h[http.CanonicalHeaderKey(key)]
}

// Set replaces any values for key.
func (h Header) Set(key, value string) {
	h[http.CanonicalHeaderKey(key)] = []string{value}
}

// Add appends value for multi-valued keys. For any other key it only sets
// the value when none is present.
func (h Header) Add(key, value string) {
	key = http.CanonicalHeaderKey(key)
	if len(h[key]) > 0 && !multiValued[key] {
		return
	}
	h[key] = append(h[key], value)
}

// Del removes key.
func (h Header) Del(key string) {
	delete(h, http.CanonicalHeaderKey(key))
}

// Clone returns a deep copy.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, vs := range h {
		out[k] = slices.Clone(vs)
	}
	return out
}

// Flatten returns one value per key, the first.
func (h Header) Flatten() map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// CopyTo copies the header into a net/http header, replacing existing keys.
func (h Header) CopyTo(dst http.Header) {
	for k, vs := range h {
		dst[k] = slices.Clone(vs)
	}
}
