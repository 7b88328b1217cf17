// Package metrics defines the Prometheus instruments for chat turns.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medicrypt"

// Turn outcomes used as the "outcome" label.
const (
	OutcomeAnswered         = "answered"
	OutcomeRefused          = "refused"
	OutcomeCompletionFailed = "completion_failed"
)

// Metrics groups all Prometheus instruments used by the chat sessions.
type Metrics struct {
	registry prometheus.Gatherer

	Turns             *prometheus.CounterVec
	RetrievalFailures *prometheus.CounterVec
	RecordsInjected   *prometheus.HistogramVec
	CompletionSeconds *prometheus.HistogramVec
	ActiveSessions    prometheus.Gauge
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWith(reg, reg)
}

// NewWith registers the instruments on reg and serves them from g.
func NewWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: g,
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Chat turns by role and outcome.",
		}, []string{"role", "outcome"}),
		RetrievalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Retriever errors and timeouts that degraded to an empty record set.",
		}, []string{"role"}),
		RecordsInjected: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_injected",
			Help:      "Records folded into the per-turn context.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		}, []string{"role"}),
		CompletionSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_seconds",
			Help:      "Completion engine latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open chat sessions.",
		}),
	}
}

// Turn counts one finished turn. Nil receivers are ignored so callers
// need not check whether metrics are enabled.
func (m *Metrics) Turn(role, outcome string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) RetrievalFailed(role string) {
	if m == nil {
		return
	}
	m.RetrievalFailures.WithLabelValues(role).Inc()
}

func (m *Metrics) Injected(role string, n int) {
	if m == nil {
		return
	}
	m.RecordsInjected.WithLabelValues(role).Observe(float64(n))
}

func (m *Metrics) ObserveCompletion(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionSeconds.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
