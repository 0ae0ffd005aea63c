// Package telemetry wires Prometheus counters/histograms and OpenTelemetry
// tracing for the control plane, adapted from the teacher's internal/metrics
// and pkg/otel packages to placement-domain signals instead of PCS-ingest
// signals.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the control plane exports.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	PlacementsTotal     *prometheus.CounterVec
	StickyHits          prometheus.Counter
	GateRejections      *prometheus.CounterVec
	FailoversTotal      *prometheus.CounterVec
	BreakerTrips        *prometheus.CounterVec
	SchedulingLatency   *prometheus.HistogramVec
	ExperimentAssignments *prometheus.CounterVec
	WALErrors           prometheus.Counter
}

// New constructs and registers the control plane's metrics against reg.
// Passing a fresh prometheus.NewRegistry() per test avoids the duplicate
// registration panic promauto's default global registry would hit if New
// were called more than once in the same process.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_requests_total",
			Help: "Total number of service placement requests received, by product and tier",
		}, []string{"product", "tier"}),

		PlacementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_placements_total",
			Help: "Total number of successful placements, by provider and region",
		}, []string{"provider", "region"}),

		StickyHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "idp_sticky_hits_total",
			Help: "Number of create requests served from an existing sticky placement",
		}),

		GateRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_gate_rejections_total",
			Help: "Number of requests where no candidate survived scheduling gates, by cell",
		}, []string{"cell"}),

		FailoversTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_failovers_total",
			Help: "Number of explicit failovers performed, by from-provider and to-provider",
		}, []string{"from_provider", "to_provider"}),

		BreakerTrips: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_breaker_trips_total",
			Help: "Number of times a provider circuit breaker tripped open",
		}, []string{"provider"}),

		SchedulingLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idp_scheduling_latency_seconds",
			Help:    "Time spent scoring and ranking candidates for a placement decision",
			Buckets: prometheus.DefBuckets,
		}, []string{"cell"}),

		ExperimentAssignments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_experiment_assignments_total",
			Help: "Number of requests bucketed into an experiment arm, by experiment and arm",
		}, []string{"experiment_id", "arm"}),

		WALErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "idp_wal_errors_total",
			Help: "Number of inbound request WAL write errors",
		}),
	}
}
