package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	reconciled      *prometheus.CounterVec
	ingested        *prometheus.CounterVec
	dispatched      *prometheus.CounterVec
	dispatchSeconds prometheus.Histogram
	pdfBytes        prometheus.Histogram
	requests        *prometheus.CounterVec
	requestSeconds  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_submissions_total",
		Help: "Audit submissions persisted, by outcome.",
	}, []string{"outcome"})
	m.reconciled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_reconcile_total",
		Help: "Callback resolutions, by matching strategy (none when unmatched).",
	}, []string{"strategy"})
	m.ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_ingest_total",
		Help: "Report ingestions, by result.",
	}, []string{"result"})
	m.dispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_engine_dispatch_total",
		Help: "Workflow engine dispatches, by outcome.",
	}, []string{"outcome"})
	m.dispatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "audit_engine_dispatch_seconds",
		Help:    "Workflow engine round-trip latency.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120},
	})
	m.pdfBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "audit_pdf_bytes",
		Help:    "Size of stored report PDFs.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_http_requests_total",
		Help: "HTTP requests, by route and status.",
	}, []string{"route", "status"})
	m.requestSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "audit_http_request_seconds",
		Help:    "HTTP request latency, by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(
		m.submissions, m.reconciled, m.ingested, m.dispatched,
		m.dispatchSeconds, m.pdfBytes, m.requests, m.requestSeconds,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reconciled(strategy string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(strategy).Inc()
}

func (m *Metrics) Ingested(result string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(result).Inc()
}

func (m *Metrics) Dispatched(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(outcome).Inc()
	m.dispatchSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) PDFStored(size int) {
	if m == nil {
		return
	}
	m.pdfBytes.Observe(float64(size))
}

func (m *Metrics) Request(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}
