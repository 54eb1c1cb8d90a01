package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/getmockd/embedhttpd/internal/id"
	"github.com/getmockd/embedhttpd/pkg/correlation"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

// result is what the native side did with one request.
type result struct {
	status  int
	size    int
	outcome string
	err     error
}

// ServeHTTP is the native side of the bridge. Each request gets a fresh
// request ID and a slot in the correlation table, is published to the
// handler side and blocks until the slot resolves.
func (inst *Instance) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	entry := &requestlog.Entry{
		InstanceID:  int64(inst.id),
		Timestamp:   start,
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryString: r.URL.RawQuery,
		RemoteAddr:  r.RemoteAddr,
	}

	res := inst.serve(w, r, entry)

	elapsed := time.Since(start)
	entry.Outcome = res.outcome
	entry.ResponseStatus = res.status
	entry.ResponseSize = res.size
	entry.DurationMs = elapsed.Milliseconds()
	if res.err != nil {
		entry.Error = res.err.Error()
	}

	b := inst.bridge
	if b.requests != nil {
		b.requests.Log(entry)
	}
	b.metrics.Request(res.outcome, elapsed)
	inst.log.Debug("request finished",
		logging.KeyRequestID, entry.ID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", res.status,
		"outcome", res.outcome,
		"duration", elapsed)
}

func (inst *Instance) serve(w http.ResponseWriter, r *http.Request, entry *requestlog.Entry) result {
	b := inst.bridge

	if state := inst.machine.State(); state != lifecycle.Running {
		return writeFailure(w, http.StatusServiceUnavailable, "instance is "+state.String(), true,
			requestlog.OutcomeRejected, fmt.Errorf("instance is %s", state))
	}

	req, err := message.DecodeRequest(r, b.maxBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, message.ErrBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		return writeFailure(w, status, err.Error(), true, requestlog.OutcomeRejected, err)
	}
	entry.Headers = req.Header
	entry.BodySize = len(req.Body)

	requestID := id.RequestID()
	entry.ID = requestID

	slot, err := inst.table.Register(requestID)
	if err != nil {
		return writeFailure(w, http.StatusServiceUnavailable, "instance is shutting down", true,
			requestlog.OutcomeRejected, err)
	}
	b.metrics.Pending(1)
	defer b.metrics.Pending(-1)

	err = b.relay.PublishRequest(relay.RequestArrived{
		InstanceID: inst.id,
		RequestID:  requestID,
		Request:    req,
	})
	if err != nil {
		_ = inst.table.Fail(requestID, err)
		b.metrics.Orphan()
		b.orphaned(inst)
		return writeFailure(w, http.StatusServiceUnavailable, "no handler attached", true,
			requestlog.OutcomeOrphan, err)
	}

	resp, err := inst.table.Await(r.Context(), slot)
	switch {
	case err == nil:
		if werr := message.EncodeResponse(w, resp); werr != nil {
			return result{status: resp.Status, outcome: requestlog.OutcomeError, err: werr}
		}
		return result{status: resp.Status, size: len(resp.Body), outcome: requestlog.OutcomeResponded}
	case errors.Is(err, correlation.ErrTimeout):
		inst.log.Warn("request timed out waiting for handler", logging.KeyRequestID, requestID)
		return writeFailure(w, http.StatusGatewayTimeout, "handler did not respond in time", true,
			requestlog.OutcomeTimeout, err)
	case errors.Is(err, lifecycle.ErrInstanceStopping):
		return writeFailure(w, http.StatusServiceUnavailable, "instance is stopping", true,
			requestlog.OutcomeStopping, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return result{outcome: requestlog.OutcomeCanceled, err: err}
	default:
		return writeFailure(w, http.StatusInternalServerError, err.Error(), false,
			requestlog.OutcomeError, err)
	}
}

func writeFailure(w http.ResponseWriter, status int, msg string, closeConn bool, outcome string, cause error) result {
	resp := message.NewResponse(status, map[string]string{
		"Content-Type": "text/plain; charset=utf-8",
	}, []byte(msg+"\n"))
	if closeConn {
		resp.Header.Set("Connection", "close")
	}
	_ = message.EncodeResponse(w, resp)
	return result{status: status, size: len(resp.Body), outcome: outcome, err: cause}
}
