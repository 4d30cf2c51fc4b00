package reconcile

import (
	"context"
	"errors"
	"testing"

	"go-crisislens/reasoning"
	"go-crisislens/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mergedAnalysis = `{
  "is_crisis": true,
  "type_classification": {"type": "Flood", "confidence": 0.95},
  "location": {"name": "Chennai", "coordinates": {"lat": 13.08, "lon": 80.27}},
  "severity": {"overall": 0.95, "dimensions": {"human_impact": 0.95, "infrastructure_damage": 0.9, "geographic_scale": 0.8, "temporal_urgency": 0.9}},
  "urgency": {"level": "critical", "is_urgent": true},
  "priority": {"level": "CRITICAL", "score": 0.95},
  "explanation": {"content": "Death toll rose to 12."}
}`

func existingRecord() types.CrisisRecord {
	return types.CrisisRecord{
		ID:       "c1",
		Title:    "Crisis Alert: Flood in Chennai",
		Severity: 0.8,
		Location: types.Location{Name: "Chennai"},
		Analysis: types.Assessment{IsCrisis: true, Severity: types.SeverityAssessment{Overall: 0.8}},
	}
}

func TestReconcileAcceptsUpdate(t *testing.T) {
	stub := &reasoning.StubReasoner{Response: `{"has_update": true, "reason": "casualties increased", "merged_analysis": ` + mergedAnalysis + `}`}
	r := New(stub, zap.NewNop(), nil)

	res := r.Reconcile(context.Background(), "12 dead in Chennai floods", types.Assessment{IsCrisis: true}, existingRecord())

	require.True(t, res.HasUpdate)
	require.NotNil(t, res.MergedAnalysis)
	assert.Equal(t, 0.95, res.MergedAnalysis.Severity.Overall)
	assert.Equal(t, "casualties increased", res.Reason)
	assert.Contains(t, stub.Requests[0].Prompt, "12 dead in Chennai floods")
	assert.Contains(t, stub.Requests[0].Prompt, "Crisis Alert: Flood in Chennai")
}

func TestReconcileRejectsRepeat(t *testing.T) {
	stub := &reasoning.StubReasoner{Response: `{"has_update": false, "reason": "same facts", "merged_analysis": ` + mergedAnalysis + `}`}
	r := New(stub, zap.NewNop(), nil)

	res := r.Reconcile(context.Background(), "flooding in Chennai", types.Assessment{}, existingRecord())

	assert.False(t, res.HasUpdate)
	assert.Nil(t, res.MergedAnalysis)
}

func TestReconcileDefaultsToNoUpdateOnFailure(t *testing.T) {
	cases := map[string]*reasoning.StubReasoner{
		"service error": {Err: errors.New("timeout")},
		"invalid json":  {Response: "yes, update it"},
		"missing merge": {Response: `{"has_update": true, "reason": "x"}`},
	}
	for name, stub := range cases {
		t.Run(name, func(t *testing.T) {
			r := New(stub, zap.NewNop(), nil)
			res := r.Reconcile(context.Background(), "text", types.Assessment{}, existingRecord())
			assert.False(t, res.HasUpdate)
			assert.Nil(t, res.MergedAnalysis)
		})
	}
}
