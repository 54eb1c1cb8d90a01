package control

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/httputil"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay"
	"github.com/getmockd/embedhttpd/pkg/relay/remote"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Uptime:    int64(time.Since(s.started).Seconds()),
		Instances: len(s.bridge.Instances()),
		Relay:     s.bridge.Relay().Stats(),
	})
}

// instanceFromPath resolves {id}, writing the error response on failure.
func (s *Server) instanceFromPath(w http.ResponseWriter, r *http.Request) (*bridge.Instance, bool) {
	instanceID, err := message.ParseInstanceID(r.PathValue("id"))
	if err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return nil, false
	}
	inst, err := s.bridge.Instance(instanceID)
	if err != nil {
		writeError(w, s.log, "get instance", err)
		return nil, false
	}
	return inst, true
}

func (s *Server) handleListInstances(w http.ResponseWriter, _ *http.Request) {
	insts := s.bridge.Instances()
	infos := make([]bridge.InstanceInfo, 0, len(insts))
	for _, inst := range insts {
		infos = append(infos, inst.Info())
	}
	httputil.WriteOK(w, InstanceListResponse{Instances: infos, Count: len(infos)})
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req CreateInstanceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	inst, err := Provision(s.bridge, &req)
	if err != nil {
		writeError(w, s.log, "create instance", err)
		return
	}
	httputil.WriteCreated(w, inst.Info())
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceFromPath(w, r)
	if !ok {
		return
	}
	httputil.WriteOK(w, inst.Info())
}

// handleRemoveInstance detaches the instance and disposes it.
func (s *Server) handleRemoveInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, err := message.ParseInstanceID(r.PathValue("id"))
	if err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	inst, err := s.bridge.RemoveInstance(instanceID, force)
	if err != nil {
		writeError(w, s.log, "remove instance", err)
		return
	}
	if err := inst.Dispose(s.bridge.StopDefaults()); err != nil {
		writeError(w, s.log, "dispose instance", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleStartInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceFromPath(w, r)
	if !ok {
		return
	}
	if err := inst.Start(); err != nil {
		writeError(w, s.log, "start instance", err)
		return
	}
	httputil.WriteOK(w, inst.Info())
}

func (s *Server) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceFromPath(w, r)
	if !ok {
		return
	}
	var req StopRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	if err := inst.Stop(req.Options()); err != nil {
		writeError(w, s.log, "stop instance", err)
		return
	}
	httputil.WriteOK(w, inst.Info())
}

func (s *Server) handleReloadInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceFromPath(w, r)
	if !ok {
		return
	}
	if err := inst.Reload(); err != nil {
		writeError(w, s.log, "reload instance", err)
		return
	}
	httputil.WriteOK(w, inst.Info())
}

func (s *Server) handleDisposeInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, err := message.ParseInstanceID(r.PathValue("id"))
	if err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	var req StopRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	if err := s.bridge.Dispose(instanceID, req.Options()); err != nil {
		writeError(w, s.log, "dispose instance", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceFromPath(w, r)
	if !ok {
		return
	}
	pending := inst.PendingRequests()
	httputil.WriteOK(w, PendingListResponse{
		InstanceID: inst.ID(),
		Pending:    pending,
		Count:      len(pending),
	})
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	instanceID, err := message.ParseInstanceID(r.PathValue("id"))
	if err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	var req RespondRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, CodeInvalidRequest, err.Error())
		return
	}
	err = s.bridge.RespondWith(instanceID, r.PathValue("rid"), req.Status, req.Headers, []byte(req.Body))
	if err != nil {
		writeError(w, s.log, "respond", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instanceFromPath(w, r)
	if !ok {
		return
	}
	err := s.endpoint.Attach(w, r, inst.ID())
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrSubscriberExists):
		writeError(w, s.log, "attach", err)
	case errors.Is(err, remote.ErrUpgradeFailed):
		s.log.Debug("relay upgrade failed", "error", err)
	default:
		s.log.Warn("relay attach failed", "error", err)
	}
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := s.bridge.Relay().Subscriptions()
	httputil.WriteOK(w, SubscriptionListResponse{Subscriptions: subs, Count: len(subs)})
}
