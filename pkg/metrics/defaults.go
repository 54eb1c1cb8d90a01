package metrics

import (
	"time"
)

// Bridge is the metric set reported by the bridge. A nil *Bridge discards
// every update.
type Bridge struct {
	RequestsTotal   *Counter
	RequestDuration *Histogram
	PendingRequests *Gauge
	Instances       *Gauge
	OrphansTotal    *Counter
}

// NewBridge registers the bridge metrics on r.
func NewBridge(r *Registry) *Bridge {
	return &Bridge{
		RequestsTotal: r.NewCounter("embedhttpd_requests_total",
			"Bridged requests by outcome", "outcome"),
		RequestDuration: r.NewHistogram("embedhttpd_request_duration_seconds",
			"Time from accepting a request to writing its response", DefaultBuckets),
		PendingRequests: r.NewGauge("embedhttpd_pending_requests",
			"Requests waiting for the handler side"),
		Instances: r.NewGauge("embedhttpd_instances",
			"Instances by lifecycle state", "state"),
		OrphansTotal: r.NewCounter("embedhttpd_orphans_total",
			"Requests that arrived for an instance without a handler"),
	}
}

// Request records a finished request.
func (b *Bridge) Request(outcome string, d time.Duration) {
	if b == nil {
		return
	}
	if v, err := b.RequestsTotal.WithLabels(outcome); err == nil {
		_ = v.Inc()
	}
	_ = b.RequestDuration.Observe(d.Seconds())
}

// Pending adjusts the pending request gauge.
func (b *Bridge) Pending(delta float64) {
	if b == nil {
		return
	}
	_ = b.PendingRequests.Add(delta)
}

// Transition moves one instance between state gauges. An empty from or to
// skips that side.
func (b *Bridge) Transition(from, to string) {
	if b == nil {
		return
	}
	if from != "" {
		if v, err := b.Instances.WithLabels(from); err == nil {
			v.Dec()
		}
	}
	if to != "" {
		if v, err := b.Instances.WithLabels(to); err == nil {
			v.Inc()
		}
	}
}

// Orphan counts a request for an instance without a handler.
func (b *Bridge) Orphan() {
	if b == nil {
		return
	}
	_ = b.OrphansTotal.Inc()
}
