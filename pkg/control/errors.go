package control

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/config"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/httputil"
	"github.com/getmockd/embedhttpd/pkg/message"
)

// Error codes returned in ErrorResponse.Error.
const (
	CodeInstanceNotFound = "instance_not_found"
	CodeRequestNotFound  = "request_not_found"
	CodeAlreadyCompleted = "already_completed"
	CodeInstanceBusy     = "instance_busy"
	CodeInstanceDisposed = "instance_disposed"
	CodeAddressInUse     = "address_in_use"
	CodeHandlerAttached  = "handler_attached"
	CodeInvalidTLS       = "invalid_tls"
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeInternal         = "internal_error"
)

// classify maps a bridge error to an HTTP status and error code. Order
// matters: ErrAlreadyCompleted also matches ErrRequestNotFound.
func classify(err error) (int, string) {
	var verr *config.ValidationError
	switch {
	case errors.Is(err, bridge.ErrAlreadyCompleted):
		return http.StatusConflict, CodeAlreadyCompleted
	case errors.Is(err, bridge.ErrRequestNotFound):
		return http.StatusNotFound, CodeRequestNotFound
	case errors.Is(err, bridge.ErrInstanceNotFound):
		return http.StatusNotFound, CodeInstanceNotFound
	case errors.Is(err, bridge.ErrInstanceBusy):
		return http.StatusConflict, CodeInstanceBusy
	case errors.Is(err, bridge.ErrInstanceDisposed):
		return http.StatusConflict, CodeInstanceDisposed
	case errors.Is(err, bridge.ErrAddressInUse):
		return http.StatusConflict, CodeAddressInUse
	case errors.Is(err, bridge.ErrSubscriberExists):
		return http.StatusConflict, CodeHandlerAttached
	case errors.Is(err, bridge.ErrInvalidTLSMaterial):
		return http.StatusBadRequest, CodeInvalidTLS
	case errors.Is(err, message.ErrInvalidStatus),
		errors.Is(err, message.ErrBodyTooLarge),
		errors.Is(err, handler.ErrUnknownType),
		errors.As(err, &verr):
		return http.StatusBadRequest, CodeInvalidRequest
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// writeError writes err with its mapped status. Internal errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, log *slog.Logger, operation string, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("operation failed", "operation", operation, "error", err)
		msg = "an internal error occurred"
	}
	httputil.WriteError(w, status, code, msg)
}
