package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/skill-extractor/internal/matching"
)

// Extraction outcomes recorded in skill_extractions_total.
const (
	ResultOK       = "ok"
	ResultDegraded = "degraded"
	ResultEmpty    = "empty"
	ResultError    = "error"
)

// Metrics holds the Prometheus collectors for extraction and HTTP traffic.
// Each Metrics registers into its own registry so tests and multiple servers
// do not collide.
type Metrics struct {
	registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	annotations        *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	budgetExhausted    prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMetrics creates the collectors in a fresh registry that also carries the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skill",
			Name:      "extractions_total",
			Help:      "Extractions by outcome.",
		}, []string{"result"}),
		annotations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skill",
			Name:      "annotations_total",
			Help:      "Annotations emitted, by matcher.",
		}, []string{"kind"}),
		extractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skill",
			Name:      "extraction_duration_seconds",
			Help:      "Time spent matching one document.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2, 5},
		}),
		budgetExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "skill",
			Name:      "ngram_budget_exhausted_total",
			Help:      "Extractions that fell back to exact matches because the n-gram budget ran out.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skill",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "skill",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExtraction records one finished extraction.
func (m *Metrics) ObserveExtraction(res matching.Result, elapsed time.Duration) {
	m.extractionDuration.Observe(elapsed.Seconds())

	switch {
	case res.Degraded:
		m.extractions.WithLabelValues(ResultDegraded).Inc()
		m.budgetExhausted.Inc()
	case len(res.Annotations) == 0:
		m.extractions.WithLabelValues(ResultEmpty).Inc()
	default:
		m.extractions.WithLabelValues(ResultOK).Inc()
	}

	for kind, n := range res.Annotations.CountByKind() {
		m.annotations.WithLabelValues(kind.String()).Add(float64(n))
	}
}

// ObserveError records an extraction that failed before producing a result.
func (m *Metrics) ObserveError() {
	m.extractions.WithLabelValues(ResultError).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method, code string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
