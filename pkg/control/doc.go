// Package control serves the management API of a bridge: instance
// lifecycle, pending requests, handler-side responses, the request log,
// metrics and the WebSocket attach point for remote handlers.
//
// Routes:
//
//	GET    /health
//	GET    /metrics
//	GET    /instances
//	POST   /instances
//	GET    /instances/{id}
//	DELETE /instances/{id}?force=true
//	POST   /instances/{id}/start
//	POST   /instances/{id}/stop
//	POST   /instances/{id}/reload
//	POST   /instances/{id}/dispose
//	GET    /instances/{id}/pending
//	POST   /instances/{id}/requests/{rid}/respond
//	GET    /instances/{id}/relay
//	GET    /relay/subscriptions
//	GET    /requests
//	GET    /requests/{id}
//	DELETE /requests
package control
