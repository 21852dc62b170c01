// Package metrics holds the pipeline's Prometheus collectors. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "integrations"

// Metrics defines the Prometheus metrics for ingestion and processing.
type Metrics struct {
	registry        *prometheus.Registry
	accepted        *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	processing      *prometheus.HistogramVec
	adapterFailures *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
}

// New creates the collectors on a private registry that also carries the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "webhook_events_accepted_total",
			Help: "Events accepted and enqueued by the ingestion gateway.",
		}, []string{"service"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "webhook_events_rejected_total",
			Help: "Events rejected by validation at the ingestion gateway.",
		}, []string{"service"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "webhook_rate_limited_total",
			Help: "Requests refused by the per-endpoint rate limiter.",
		}, []string{"endpoint"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_outcomes_total",
			Help: "Processing attempts by outcome.",
		}, []string{"service", "outcome"}),
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "worker_processing_seconds",
			Help:    "Time spent processing one task attempt.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "adapter_transient_failures_total",
			Help: "Transient failures returned by upstream adapters.",
		}, []string{"service"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_depth",
			Help: "Tasks in each queue partition.",
		}, []string{"partition"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.accepted, m.rejected, m.rateLimited, m.outcomes, m.processing, m.adapterFailures, m.queueDepth,
	)
	return m
}

func (m *Metrics) Accepted(service string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.accepted.WithLabelValues(service).Add(float64(n))
}

func (m *Metrics) Rejected(service string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rejected.WithLabelValues(service).Add(float64(n))
}

func (m *Metrics) RateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// Outcome records one processing attempt.
func (m *Metrics) Outcome(service, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(service, outcome).Inc()
	m.processing.WithLabelValues(service).Observe(took.Seconds())
}

func (m *Metrics) AdapterFailure(service string) {
	if m == nil {
		return
	}
	m.adapterFailures.WithLabelValues(service).Inc()
}

// QueueDepth sets the gauge for the ready, delayed and dead partitions.
func (m *Metrics) QueueDepth(ready, delayed, dead int64) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues("ready").Set(float64(ready))
	m.queueDepth.WithLabelValues("delayed").Set(float64(delayed))
	m.queueDepth.WithLabelValues("dead").Set(float64(dead))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Register mounts GET /metrics on router.
func (m *Metrics) Register(router gin.IRoutes) {
	router.GET("/metrics", gin.WrapH(m.Handler()))
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
