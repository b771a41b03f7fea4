// Package metrics provides Prometheus metrics for the leaderboard service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Manager owns the service's collectors. It is safe for concurrent use; a nil
// *Manager is a valid no-op recorder.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	recomputes        *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	rankedRows        prometheus.Histogram

	broadcasts *prometheus.CounterVec
	viewers    prometheus.Gauge

	queueDepth   prometheus.Gauge
	jobsConsumed *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithRegistry the collectors go
// to a private registry that also carries the Go runtime collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "skillport",
		subsystem:        "leaderboard",
		histogramBuckets: prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	f := promauto.With(m.registry)

	m.recomputes = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "recomputes_total",
		Help: "Leaderboard recomputations by outcome",
	}, []string{"outcome"})
	m.recomputeDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "recompute_duration_seconds",
		Help:    "Time spent recomputing and persisting one contest leaderboard",
		Buckets: m.histogramBuckets,
	})
	m.rankedRows = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "ranked_participants",
		Help:    "Participants ranked per recomputation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	m.broadcasts = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcasts_total",
		Help: "Snapshot publications by transport and outcome",
	}, []string{"transport", "outcome"})
	m.viewers = f.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "live_viewers",
		Help: "Connected live leaderboard viewers",
	})
	m.queueDepth = f.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "recompute_queue_depth",
		Help: "Pending deferred recompute jobs",
	})
	m.jobsConsumed = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "recompute_jobs_total",
		Help: "Deferred recompute jobs consumed by reason",
	}, []string{"reason"})
	m.httpRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	m.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name:    "request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: m.histogramBuckets,
	}, []string{"method", "route"})

	return m
}

func (m *Manager) RecordRecompute(outcome string, d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.recomputeDuration.Observe(d.Seconds())
		m.rankedRows.Observe(float64(rows))
	}
}

func (m *Manager) RecordBroadcast(transport, outcome string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(transport, outcome).Inc()
}

func (m *Manager) ViewerConnected() {
	if m == nil {
		return
	}
	m.viewers.Inc()
}

func (m *Manager) ViewerDisconnected() {
	if m == nil {
		return
	}
	m.viewers.Dec()
}

func (m *Manager) SetQueueDepth(n int64) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Manager) RecordJob(reason string) {
	if m == nil {
		return
	}
	m.jobsConsumed.WithLabelValues(reason).Inc()
}

func (m *Manager) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
