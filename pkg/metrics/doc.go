// Package metrics provides Prometheus-compatible metrics for the bridge.
//
// It implements the Prometheus text exposition format
// (text/plain; version=0.0.4) with counters, gauges and histograms. Every
// metric may carry labels, and all of them are safe for concurrent use.
//
// # Bridge metrics
//
// NewBridge registers the metric set the bridge reports:
//
//   - embedhttpd_requests_total: bridged requests by outcome
//   - embedhttpd_request_duration_seconds: time from accept to response
//   - embedhttpd_pending_requests: requests waiting for the handler side
//   - embedhttpd_instances: instances by lifecycle state
//   - embedhttpd_orphans_total: requests for instances without a handler
//
// # Usage
//
//	registry := metrics.NewRegistry()
//	m := metrics.NewBridge(registry)
//	m.Request("responded", 12*time.Millisecond)
//	http.Handle("/metrics", registry.Handler())
package metrics
