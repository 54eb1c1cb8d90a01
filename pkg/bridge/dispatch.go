package bridge

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay"
)

// dispatch runs the in-process handler for one request and publishes its
// response. A handler error becomes a 500 carrying the error text.
func (inst *Instance) dispatch(ev relay.RequestArrived) {
	ctx, cancel := context.WithTimeout(context.Background(), inst.table.Timeout())
	defer cancel()

	resp, err := serveSafely(ctx, inst.handler, ev.Request)
	if err != nil {
		inst.log.Warn("handler failed", logging.KeyRequestID, ev.RequestID, "error", err)
		resp = internalError(err)
	}
	if resp == nil {
		resp = &message.Response{}
	}
	if err := resp.Normalize(inst.bridge.maxBody); err != nil {
		inst.log.Warn("handler returned an invalid response", logging.KeyRequestID, ev.RequestID, "error", err)
		resp = internalError(err)
	}

	if err := inst.bridge.Respond(inst.id, ev.RequestID, resp); err != nil {
		inst.log.Debug("response discarded", logging.KeyRequestID, ev.RequestID, "error", err)
	}
}

func internalError(err error) *message.Response {
	return message.NewResponse(http.StatusInternalServerError, map[string]string{
		"Content-Type": "text/plain; charset=utf-8",
	}, []byte(err.Error()))
}

func serveSafely(ctx context.Context, h handler.Handler, req *message.Request) (resp *message.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			resp, err = nil, fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return h.ServeMessage(ctx, req)
}
