package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Adapter call outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)

// Metrics holds the Prometheus collectors for the enrichment pipeline.
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	Reports           *prometheus.CounterVec   // labels: outcome={crisis,not_crisis,updated,duplicate,rejected,error}
	AdapterCalls      *prometheus.CounterVec   // labels: adapter, outcome={success,fallback,failure}
	AdapterDuration   *prometheus.HistogramVec // labels: adapter
	ScoringCandidates prometheus.Gauge
	Notifications     *prometheus.CounterVec // labels: outcome={sent,failed}
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "reports_total",
			Help:      "Reports processed by the enrichment pipeline, by outcome.",
		}, []string{"outcome"}),
		AdapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "adapter_calls_total",
			Help:      "External adapter calls by adapter and outcome.",
		}, []string{"adapter", "outcome"}),
		AdapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crisislens",
			Name:      "adapter_duration_seconds",
			Help:      "External adapter call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"adapter"}),
		ScoringCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crisislens",
			Name:      "scoring_candidates",
			Help:      "Responder candidates returned by the last scoring run.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "notifications_total",
			Help:      "Severe-record alerts by delivery outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.Reports, m.AdapterCalls, m.AdapterDuration, m.ScoringCandidates, m.Notifications)
	return m
}

// NewForTesting registers against a throwaway registry so tests never collide
// on the default one.
func NewForTesting() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) ObserveAdapter(adapter, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AdapterCalls.WithLabelValues(adapter, outcome).Inc()
	m.AdapterDuration.WithLabelValues(adapter).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveReport(outcome string) {
	if m == nil {
		return
	}
	m.Reports.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetScoringCandidates(n int) {
	if m == nil {
		return
	}
	m.ScoringCandidates.Set(float64(n))
}

func (m *Metrics) ObserveNotification(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}
