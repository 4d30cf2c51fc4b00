// Package refinement asks the reasoning service to correct a raw classifier
// assessment against the source text. Refinement is best effort: on any
// service or validation failure the raw assessment is returned unchanged.
package refinement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-crisislens/metrics"
	"go-crisislens/reasoning"
	"go-crisislens/types"

	"go.uber.org/zap"
)

const adapterName = "refiner"

// Outcome tags which assessment Refine returned.
type Outcome string

const (
	Refined  Outcome = "refined"
	Fallback Outcome = "fallback"
)

const systemPrompt = `You are a crisis intelligence analyst for disaster and humanitarian response.
You receive a social media post or news text together with a preliminary machine classification.
Validate the classification against the text and return a corrected assessment.

Rules:
- Identify the most specific real place mentioned (city, district, region). Ignore usernames,
  hashtags and organisation names when extracting the location.
- Provide coordinates for that place when you know them; use 0 for both when you do not.
- Fix the crisis type if the preliminary classification is wrong. Use "Others" when no listed
  type fits.
- Rate overall severity and each dimension from 0 to 1.
- Keep urgency, priority and the explanation consistent with the severity you assign.
- The explanation must be a short professional summary of the situation.`

// Refiner is the Refinement Adapter.
type Refiner struct {
	reasoner reasoning.Reasoner
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(r reasoning.Reasoner, logger *zap.Logger, m *metrics.Metrics) *Refiner {
	return &Refiner{reasoner: r, logger: logger, metrics: m}
}

// Refine returns the refined assessment, or raw with Fallback when the
// reasoning service fails or answers outside the schema.
func (r *Refiner) Refine(ctx context.Context, text string, raw types.Assessment) (types.Assessment, Outcome) {
	start := time.Now()
	refined, err := r.refine(ctx, text, raw)
	if err != nil {
		r.logger.Warn("refinement failed, using raw assessment",
			zap.String("adapter", adapterName),
			zap.Error(err),
		)
		r.metrics.ObserveAdapter(adapterName, metrics.OutcomeFallback, time.Since(start))
		return raw, Fallback
	}
	r.metrics.ObserveAdapter(adapterName, metrics.OutcomeSuccess, time.Since(start))
	return refined, Refined
}

func (r *Refiner) refine(ctx context.Context, text string, raw types.Assessment) (types.Assessment, error) {
	if r.reasoner == nil {
		return types.Assessment{}, fmt.Errorf("no reasoning service configured")
	}

	rawJSON, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return types.Assessment{}, fmt.Errorf("marshal raw assessment: %w", err)
	}

	prompt := fmt.Sprintf("Text:\n%s\n\nPreliminary classification:\n%s", text, rawJSON)
	schema := reasoning.AssessmentSchema()

	content, err := r.reasoner.Reason(ctx, reasoning.Request{
		System:     systemPrompt,
		Prompt:     prompt,
		SchemaName: "crisis_assessment",
		Schema:     schema,
	})
	if err != nil {
		return types.Assessment{}, err
	}

	var refined types.Assessment
	if err := reasoning.Decode(adapterName, schema, content, &refined); err != nil {
		return types.Assessment{}, err
	}
	return refined, nil
}
