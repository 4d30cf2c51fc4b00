package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAdapter(t *testing.T) {
	m := NewForTesting()

	m.ObserveAdapter("refiner", OutcomeFallback, 120*time.Millisecond)
	m.ObserveAdapter("refiner", OutcomeFallback, 80*time.Millisecond)
	m.ObserveAdapter("refiner", OutcomeSuccess, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AdapterCalls.WithLabelValues("refiner", OutcomeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdapterCalls.WithLabelValues("refiner", OutcomeSuccess)))
}

func TestReportsAndGauge(t *testing.T) {
	m := NewForTesting()

	m.ObserveReport("crisis")
	m.SetScoringCandidates(3)
	m.ObserveNotification("sent")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reports.WithLabelValues("crisis")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ScoringCandidates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("sent")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAdapter("classifier", OutcomeFailure, time.Second)
		m.ObserveReport("error")
		m.SetScoringCandidates(1)
		m.ObserveNotification("failed")
	})
}
