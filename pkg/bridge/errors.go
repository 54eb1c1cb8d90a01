package bridge

import (
	"github.com/getmockd/embedhttpd/pkg/correlation"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/listener"
	"github.com/getmockd/embedhttpd/pkg/relay"
	"github.com/getmockd/embedhttpd/pkg/tls"
)

// Error is a sentinel error type for registry failures.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

var (
	// ErrInstanceNotFound is returned for an unknown instance ID.
	ErrInstanceNotFound = Error("instance not found")

	// ErrInstanceBusy is returned by a non-forced removal while requests
	// are still pending.
	ErrInstanceBusy = Error("instance has pending requests")

	// ErrBridgeClosed is returned by CreateInstance after Close.
	ErrBridgeClosed = Error("bridge closed")
)

// Errors surfaced by the bridge but defined by the packages that detect them.
var (
	ErrAddressInUse       = listener.ErrAddressInUse
	ErrInvalidTLSMaterial = tls.ErrInvalidMaterial
	ErrInstanceDisposed   = lifecycle.ErrInstanceDisposed
	ErrInstanceStopping   = lifecycle.ErrInstanceStopping
	ErrDuplicateRequestID = correlation.ErrDuplicateRequestID
	ErrRequestNotFound    = correlation.ErrNotFound
	ErrAlreadyCompleted   = correlation.ErrAlreadyCompleted
	ErrTimeout            = correlation.ErrTimeout
	ErrOrphanInstance     = relay.ErrOrphanInstance
	ErrSubscriberExists   = relay.ErrSubscriberExists
)
