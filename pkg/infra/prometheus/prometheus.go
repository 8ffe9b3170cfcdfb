package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	latencyBuckets = []float64{
		0.5, 1, 2.5, // in-memory decisions should land here
		5, 10, 25,
		50, 100, 250,
	}

	RequestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shieldgate_requests_total",
			Help: "Total number of requests inspected by the defense chain",
		},
		[]string{"method", "decision"},
	)

	RejectionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shieldgate_rejections_total",
			Help: "Requests rejected before reaching the upstream, by code",
		},
		[]string{"code"},
	)

	DecisionLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shieldgate_decision_latency_ms",
			Help:    "Time spent in the defense chain per request, in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"stage"},
	)

	SecurityEventsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shieldgate_security_events_total",
			Help: "Security events recorded, by type and severity",
		},
		[]string{"type", "severity"},
	)

	UpstreamErrors = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "shieldgate_upstream_errors_total",
			Help: "Upstream forwarding failures, by reason",
		},
		[]string{"reason"},
	)
)

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}
