// Package metrics exposes Prometheus collectors for bridge activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the bridge collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	dispatched    *prometheus.CounterVec
	resolved      *prometheus.CounterVec
	stale         *prometheus.CounterVec
	preconditions *prometheus.CounterVec
	malformed     prometheus.Counter
	pending       prometheus.Gauge
	latency       *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "y8bridge_calls_dispatched_total",
				Help: "Total number of SDK calls dispatched",
			},
			[]string{"kind"},
		),
		resolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "y8bridge_calls_resolved_total",
				Help: "Total number of SDK calls resolved",
			},
			[]string{"kind", "outcome"},
		),
		stale: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "y8bridge_stale_resolutions_total",
				Help: "Responses that arrived for an id with no waiting caller",
			},
			[]string{"kind"},
		),
		preconditions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "y8bridge_precondition_failures_total",
				Help: "Calls short-circuited before dispatch",
			},
			[]string{"kind", "code"},
		),
		malformed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "y8bridge_malformed_envelopes_total",
				Help: "Responses rejected because the envelope could not be parsed",
			},
		),
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "y8bridge_pending_calls",
				Help: "Number of calls waiting for a response",
			},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "y8bridge_call_duration_seconds",
				Help:    "Time from dispatch to resolution",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.dispatched, m.resolved, m.stale, m.preconditions, m.malformed, m.pending, m.latency)
	return m
}

func (m *Metrics) Dispatched(kind string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(kind).Inc()
}

// Resolved records a resolution; outcome is "success" or "failure".
func (m *Metrics) Resolved(kind string, success bool, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.resolved.WithLabelValues(kind, outcome).Inc()
	m.latency.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) Stale(kind string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(kind).Inc()
}

func (m *Metrics) PreconditionFailed(kind, code string) {
	if m == nil {
		return
	}
	m.preconditions.WithLabelValues(kind, code).Inc()
}

func (m *Metrics) Malformed() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// Handler serves the collectors registered in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
