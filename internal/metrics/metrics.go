// Package metrics exposes Prometheus instrumentation for the scope engine.
//
// Each engine instance registers its own metric set labeled with the engine
// ID, so several engines (one per dashboard widget) can share a registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set holds the engine's Prometheus collectors.
type Set struct {
	FramesTotal      prometheus.Counter
	DecodeFailures   prometheus.Counter
	UnknownKinds     prometheus.Counter
	OutOfOrderDrops  prometheus.Counter
	Evictions        prometheus.Counter
	Reconnects       prometheus.Counter
	HistoricalLoads  prometheus.Counter
	HistoricalErrors prometheus.Counter
	ConnState        prometheus.Gauge
}

// New creates a metric set and registers it with reg.
// If reg is nil, a private registry is used so tests and multiple engines
// never collide on the default registry.
func New(reg prometheus.Registerer, engineID string) *Set {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	labels := prometheus.Labels{"engine": engineID}

	s := &Set{
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_frames_total",
			Help:        "Total inbound frames received on the live channel or via polling.",
			ConstLabels: labels,
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_decode_failures_total",
			Help:        "Frames dropped because the payload could not be decoded.",
			ConstLabels: labels,
		}),
		UnknownKinds: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_unknown_kinds_total",
			Help:        "Frames dropped because the event kind is not recognized.",
			ConstLabels: labels,
		}),
		OutOfOrderDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_out_of_order_drops_total",
			Help:        "Samples dropped because their timestamp predates the series tail.",
			ConstLabels: labels,
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_sample_evictions_total",
			Help:        "Samples evicted by window age or point cap.",
			ConstLabels: labels,
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_reconnects_total",
			Help:        "Reconnection attempts after transport failure.",
			ConstLabels: labels,
		}),
		HistoricalLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_historical_loads_total",
			Help:        "Historical range queries issued for seeding or polling.",
			ConstLabels: labels,
		}),
		HistoricalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "scope_historical_load_failures_total",
			Help:        "Historical range queries that returned an error.",
			ConstLabels: labels,
		}),
		ConnState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "scope_connection_state",
			Help:        "Current connection state (0=disconnected 1=connecting 2=subscribed 3=reconnecting 4=closed).",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		s.FramesTotal,
		s.DecodeFailures,
		s.UnknownKinds,
		s.OutOfOrderDrops,
		s.Evictions,
		s.Reconnects,
		s.HistoricalLoads,
		s.HistoricalErrors,
		s.ConnState,
	)

	return s
}
