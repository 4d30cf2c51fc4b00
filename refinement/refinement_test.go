package refinement

import (
	"context"
	"errors"
	"testing"

	"go-crisislens/metrics"
	"go-crisislens/reasoning"
	"go-crisislens/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func rawFlood() types.Assessment {
	return types.Assessment{
		IsCrisis:           true,
		TypeClassification: types.TypeClassification{Type: "Flood", Confidence: 0.7},
		Location:           types.AssessedLocation{Name: "Chennai"},
		Severity:           types.SeverityAssessment{Overall: 0.8},
	}
}

const refinedJSON = `{
  "is_crisis": true,
  "type_classification": {"type": "Flood", "confidence": 0.95},
  "location": {"name": "Chennai", "coordinates": {"lat": 13.08, "lon": 80.27}},
  "severity": {"overall": 0.85, "dimensions": {"human_impact": 0.9, "infrastructure_damage": 0.8, "geographic_scale": 0.7, "temporal_urgency": 0.9}},
  "urgency": {"level": "critical", "is_urgent": true},
  "priority": {"level": "CRITICAL", "score": 0.9},
  "explanation": {"content": "Flooding displaced 200 families."}
}`

func TestRefineReturnsValidatedAssessment(t *testing.T) {
	stub := &reasoning.StubReasoner{Response: refinedJSON}
	m := metrics.NewForTesting()
	r := New(stub, zap.NewNop(), m)

	got, outcome := r.Refine(context.Background(), "Severe flooding in Chennai", rawFlood())

	assert.Equal(t, Refined, outcome)
	assert.Equal(t, 0.85, got.Severity.Overall)
	lon, lat, ok := got.Location.Coordinates.Point()
	require.True(t, ok)
	assert.InDelta(t, 80.27, lon, 1e-9)
	assert.InDelta(t, 13.08, lat, 1e-9)

	require.Equal(t, 1, stub.Calls())
	assert.Contains(t, stub.Requests[0].Prompt, "Severe flooding in Chennai")
	assert.Contains(t, stub.Requests[0].Prompt, `"Flood"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdapterCalls.WithLabelValues(adapterName, metrics.OutcomeSuccess)))
}

func TestRefineFallsBackToRaw(t *testing.T) {
	cases := map[string]*reasoning.StubReasoner{
		"service error":   {Err: errors.New("unavailable")},
		"invalid json":    {Response: "{not json"},
		"schema mismatch": {Response: `{"is_crisis": true}`},
		"empty":           {Response: ""},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			m := metrics.NewForTesting()
			r := New(stub, zap.NewNop(), m)
			raw := rawFlood()

			got, outcome := r.Refine(context.Background(), "text", raw)

			assert.Equal(t, Fallback, outcome)
			assert.Equal(t, raw, got)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.AdapterCalls.WithLabelValues(adapterName, metrics.OutcomeFallback)))
		})
	}
}

func TestRefineWithoutReasonerFallsBack(t *testing.T) {
	r := New(nil, zap.NewNop(), nil)
	got, outcome := r.Refine(context.Background(), "text", rawFlood())
	assert.Equal(t, Fallback, outcome)
	assert.Equal(t, rawFlood(), got)
}
