package control

import (
	"time"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/config"
	"github.com/getmockd/embedhttpd/pkg/correlation"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/relay"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
)

// CreateInstanceRequest is the body of POST /instances. It has the shape
// of an instance entry in the configuration file.
type CreateInstanceRequest = config.InstanceConfig

// StopRequest is the optional body of POST /instances/{id}/stop and
// /dispose. Zero values select the server defaults.
type StopRequest struct {
	GracePeriodMs int64 `json:"gracePeriodMs,omitempty"`
	TimeoutMs     int64 `json:"timeoutMs,omitempty"`
}

// RespondRequest is the body of POST /instances/{id}/requests/{rid}/respond.
type RespondRequest struct {
	Status  int               `json:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string      `json:"status"`
	Version   string      `json:"version,omitempty"`
	Uptime    int64       `json:"uptimeSeconds"`
	Instances int         `json:"instances"`
	Relay     relay.Stats `json:"relay"`
}

// InstanceListResponse is returned by GET /instances.
type InstanceListResponse struct {
	Instances []bridge.InstanceInfo `json:"instances"`
	Count     int                   `json:"count"`
}

// PendingListResponse is returned by GET /instances/{id}/pending.
type PendingListResponse struct {
	InstanceID message.InstanceID `json:"instanceId"`
	Pending    []correlation.Info `json:"pending"`
	Count      int                `json:"count"`
}

// RequestListResponse is returned by GET /requests.
type RequestListResponse struct {
	Requests []*requestlog.Entry `json:"requests"`
	Count    int                 `json:"count"`
	Total    int                 `json:"total"`
}

// ClearResponse is returned by DELETE /requests.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// SubscriptionListResponse is returned by GET /relay/subscriptions.
type SubscriptionListResponse struct {
	Subscriptions []relay.SubscriptionInfo `json:"subscriptions"`
	Count         int                      `json:"count"`
}

// Options converts the request to stop options. Zero fields stay zero.
func (r StopRequest) Options() lifecycle.StopOptions {
	return lifecycle.StopOptions{
		GracePeriod: time.Duration(r.GracePeriodMs) * time.Millisecond,
		Timeout:     time.Duration(r.TimeoutMs) * time.Millisecond,
	}
}
