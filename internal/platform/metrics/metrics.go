// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	registry *prometheus.Registry

	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	PointsAwarded      *prometheus.CounterVec
	StoreErrors        *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	Subscribers        prometheus.Gauge
}

// New creates the collectors under namespace and registers them.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "course_generations_total",
			Help:      "Content generator calls by kind and result.",
		}, []string{"kind", "result"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "course_generation_duration_seconds",
			Help:      "Duration of successful content generator calls.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"kind"}),
		PointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points appended to the ledger by reason.",
		}, []string{"reason"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Key-value store failures by slice and operation.",
		}, []string{"slice", "op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_subscribers",
			Help:      "Connected websocket snapshot subscribers.",
		}),
	}

	m.registry.MustRegister(
		m.Generations,
		m.GenerationDuration,
		m.PointsAwarded,
		m.StoreErrors,
		m.HTTPRequests,
		m.HTTPDuration,
		m.Subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveGeneration records one generator call. A nil err counts as success.
func (m *Metrics) ObserveGeneration(kind string, elapsed time.Duration, err error) {
	if err != nil {
		m.Generations.WithLabelValues(kind, "failure").Inc()
		return
	}
	m.Generations.WithLabelValues(kind, "success").Inc()
	m.GenerationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
