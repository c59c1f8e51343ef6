package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes counters and histograms for the reconstruction pipeline.
// One registry per process; the reconstructor updates it through lifecycle
// notifications so analysis code stays metrics-free.
type Metrics struct {
	registry *prometheus.Registry

	EventsIngested    prometheus.Counter
	EventsRejected    prometheus.Counter
	TimelinesBuilt    prometheus.Counter
	TimelineEvents    prometheus.Counter
	MovementsDetected prometheus.Counter
	StepDuration      *prometheus.HistogramVec
	StepFailures      *prometheus.CounterVec
}

// New creates the pipeline metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "incidentgraph_events_ingested_total",
			Help: "Security events accepted at the ingestion boundary.",
		}),
		EventsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "incidentgraph_events_rejected_total",
			Help: "Security events rejected by boundary validation.",
		}),
		TimelinesBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "incidentgraph_timelines_built_total",
			Help: "Timeline reconstruction passes completed.",
		}),
		TimelineEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "incidentgraph_timeline_events_total",
			Help: "Timeline events emitted across all incidents.",
		}),
		MovementsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "incidentgraph_lateral_movements_total",
			Help: "Lateral movements detected across all incidents.",
		}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "incidentgraph_step_duration_seconds",
			Help:    "Duration of each analysis step.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		StepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "incidentgraph_step_failures_total",
			Help: "Analysis steps that returned an error.",
		}, []string{"step"}),
	}
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
