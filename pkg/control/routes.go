package control

import (
	"net/http"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.registry != nil {
		mux.Handle("GET /metrics", s.registry.Handler())
	}

	mux.HandleFunc("GET /instances", s.handleListInstances)
	mux.HandleFunc("POST /instances", s.handleCreateInstance)
	mux.HandleFunc("GET /instances/{id}", s.handleGetInstance)
	mux.HandleFunc("DELETE /instances/{id}", s.handleRemoveInstance)
	mux.HandleFunc("POST /instances/{id}/start", s.handleStartInstance)
	mux.HandleFunc("POST /instances/{id}/stop", s.handleStopInstance)
	mux.HandleFunc("POST /instances/{id}/reload", s.handleReloadInstance)
	mux.HandleFunc("POST /instances/{id}/dispose", s.handleDisposeInstance)

	mux.HandleFunc("GET /instances/{id}/pending", s.handleListPending)
	mux.HandleFunc("POST /instances/{id}/requests/{rid}/respond", s.handleRespond)
	mux.HandleFunc("GET /instances/{id}/relay", s.handleAttach)
	mux.HandleFunc("GET /relay/subscriptions", s.handleListSubscriptions)

	mux.HandleFunc("GET /requests", s.handleListRequests)
	mux.HandleFunc("GET /requests/{id}", s.handleGetRequest)
	mux.HandleFunc("DELETE /requests", s.handleClearRequests)
}
