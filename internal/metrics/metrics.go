// Package metrics collects the StreamKit-domain Prometheus metrics that
// don't already live next to their owning engine. internal/dynamicengine
// and internal/oneshotengine each hold their own active-count gauge and
// expose it via a Collector() method, following the teacher's pattern of
// keeping a metric next to the state it measures; this package holds the
// metrics that cross package boundaries instead — plugin lifecycle, event
// bus backpressure, resource cache pressure, and the admin/control request
// surfaces — registered through promauto exactly as the teacher's own
// internal/metrics does.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/streamkit/streamkit/internal/rescache"
)

var (
	// EventBusDroppedTotal counts events silently dropped by a session's
	// EventBus when a subscriber's buffer is full, mirroring the teacher's
	// bus-drop counter.
	EventBusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_eventbus_dropped_total",
		Help: "Total number of session event bus messages dropped due to a full subscriber buffer.",
	}, []string{"session_id"})

	// NodeProcessDuration tracks the wall time a node's Process call takes
	// per invocation, labeled by kind.
	NodeProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamkit_node_process_duration_seconds",
		Help:    "Duration of a single node Process call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// NodeFailuresTotal counts node transitions into the Failed state,
	// labeled by kind and whether the failure originated in a plugin.
	NodeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_node_failures_total",
		Help: "Total number of nodes that transitioned to the Failed state.",
	}, []string{"kind", "origin"})

	// PluginLoadsTotal counts plugin load attempts by dialect and outcome.
	PluginLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_plugin_loads_total",
		Help: "Total number of plugin load attempts by dialect and outcome.",
	}, []string{"dialect", "outcome"})

	// PluginPanicsTotal counts panics trapped at the plugin ABI boundary,
	// labeled by the plugin's registered kind.
	PluginPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_plugin_panics_total",
		Help: "Total number of panics recovered at the plugin ABI boundary.",
	}, []string{"kind"})

	// ControlRequestDuration tracks Dispatcher.Handle latency by action and
	// outcome.
	ControlRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamkit_control_request_duration_seconds",
		Help:    "Duration of a control-protocol request from Handle to Response.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action", "outcome"})

	// AdminRequestsTotal counts completed admin HTTP requests by route and
	// status class.
	AdminRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_admin_requests_total",
		Help: "Total number of admin HTTP API requests by route and status.",
	}, []string{"route", "status"})

	// ResourceCacheUsedBytes reports a rescache.Cache's current byte usage.
	ResourceCacheUsedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamkit_resource_cache_used_bytes",
		Help: "Current resident size of a resource cache.",
	}, []string{"cache"})

	// ResourceCacheEntries reports a rescache.Cache's current entry count.
	ResourceCacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamkit_resource_cache_entries",
		Help: "Current number of entries held by a resource cache.",
	}, []string{"cache"})

	// ResourceCacheEvictionsTotal reports cumulative evictions for a named
	// resource cache, sampled from rescache.Stats on each observation.
	ResourceCacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamkit_resource_cache_evictions_total",
		Help: "Total number of entries evicted from a resource cache under byte pressure.",
	}, []string{"cache"})
)

// ObserveResourceCache snapshots c's stats into the gauges and advances
// the eviction counter by the delta since the last observed count —
// rescache.Stats itself is a point-in-time snapshot, not a running total
// this package owns, so the counter only moves forward by what's new.
func ObserveResourceCache(name string, c *rescache.Cache, lastEvictions *int64) {
	stats := c.Stats()
	ResourceCacheUsedBytes.WithLabelValues(name).Set(float64(stats.UsedBytes))
	ResourceCacheEntries.WithLabelValues(name).Set(float64(stats.CurrentSize))
	if delta := stats.Evictions - *lastEvictions; delta > 0 {
		ResourceCacheEvictionsTotal.WithLabelValues(name).Add(float64(delta))
	}
	*lastEvictions = stats.Evictions
}

// TimeControlRequest returns a func to call with the outcome once a control
// request finishes, recording its duration.
func TimeControlRequest(action string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		ControlRequestDuration.WithLabelValues(action, outcome).Observe(time.Since(start).Seconds())
	}
}
