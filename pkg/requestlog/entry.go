package requestlog

import "time"

// Outcome values recorded for a bridged request.
const (
	OutcomeResponded = "responded"
	OutcomeTimeout   = "timeout"
	OutcomeStopping  = "stopping"
	OutcomeOrphan    = "orphan"
	OutcomeRejected  = "rejected"
	OutcomeCanceled  = "canceled"
	OutcomeError     = "error"
)

// Entry captures one bridged request and its result.
type Entry struct {
	// ID is the request ID used for correlation.
	ID string `json:"id"`

	// InstanceID is the instance that accepted the request.
	InstanceID int64 `json:"instanceId"`

	// Timestamp is when the request was accepted.
	Timestamp time.Time `json:"timestamp"`

	Method      string              `json:"method"`
	Path        string              `json:"path"`
	QueryString string              `json:"queryString,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`

	// BodySize is the request body size in bytes.
	BodySize int `json:"bodySize"`

	RemoteAddr string `json:"remoteAddr,omitempty"`

	// Outcome is how the request ended. See the Outcome constants.
	Outcome string `json:"outcome"`

	// ResponseStatus is the status written to the client, 0 when nothing
	// was written.
	ResponseStatus int `json:"responseStatus"`

	// ResponseSize is the response body size in bytes.
	ResponseSize int `json:"responseSize"`

	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}
