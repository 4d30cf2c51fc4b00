// Package scoring ranks responder organizations by funding urgency.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"go-crisislens/matcher"
	"go-crisislens/metrics"
	"go-crisislens/reasoning"
	"go-crisislens/types"

	"go.uber.org/zap"
)

const adapterName = "scorer"

const systemPrompt = `You allocate emergency funding between responder organizations (NGOs).
For every candidate produce an urgency score from 0 to 100 and a one-sentence reason.

Weighting:
- A high aggregate severity of nearby open crises raises urgency.
- Low current funds raise urgency sharply.
- High current funds suppress urgency even when nearby severity is high.
- More nearby incidents raise urgency moderately.

Return exactly one entry per candidate id. Do not invent ids.`

// Source is the slice of the store the engine reads.
type Source interface {
	matcher.ResponderLister
	ListCrisesByStatus(ctx context.Context, statuses ...types.Status) ([]types.CrisisRecord, error)
}

type candidatePayload struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	Category                string  `json:"category"`
	CurrentFunds            float64 `json:"currentFunds"`
	AggregateNearbySeverity float64 `json:"aggregateNearbySeverity"`
	NearbyIncidentCount     int     `json:"nearbyIncidentCount"`
}

type scoredEntry struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

type scoringResponse struct {
	Analysis []scoredEntry `json:"analysis"`
}

// Engine is the Responder Scoring Engine. It re-reads the store on every call.
type Engine struct {
	source   Source
	reasoner reasoning.Reasoner
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(src Source, r reasoning.Reasoner, logger *zap.Logger, m *metrics.Metrics) *Engine {
	return &Engine{source: src, reasoner: r, logger: logger, metrics: m}
}

// Score returns every responder with at least one nearby active record,
// sorted by descending urgency. Only store failures are returned as errors;
// a failed ranking leaves every urgency at 0.
func (e *Engine) Score(ctx context.Context) ([]types.ScoringCandidate, error) {
	responders, err := e.source.ListResponders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list responders: %w", err)
	}
	records, err := e.source.ListCrisesByStatus(ctx, types.ActiveStatuses...)
	if err != nil {
		return nil, fmt.Errorf("list active crises: %w", err)
	}

	candidates := BuildCandidates(responders, records)
	if len(candidates) > 0 {
		e.rank(ctx, candidates)
	}

	SortCandidates(candidates)
	e.metrics.SetScoringCandidates(len(candidates))
	return candidates, nil
}

// BuildCandidates aggregates active records per responder and drops
// responders with no nearby incidents.
func BuildCandidates(responders []types.ResponderOrganization, records []types.CrisisRecord) []types.ScoringCandidate {
	candidates := make([]types.ScoringCandidate, 0, len(responders))
	for _, r := range responders {
		var total float64
		var count int
		for _, rec := range records {
			if !rec.IsActive() || !matcher.Overlaps(rec.Location.Name, r.Address) {
				continue
			}
			total += types.Clamp01(rec.Severity)
			count++
		}
		if count == 0 {
			continue
		}
		candidates = append(candidates, types.ScoringCandidate{
			OrganizationID:          r.ID,
			Name:                    r.Name,
			Address:                 r.Address,
			Category:                r.Category,
			CurrentFunds:            r.CurrentFunds,
			AggregateNearbySeverity: math.Round(total*100) / 100,
			NearbyIncidentCount:     count,
		})
	}
	return candidates
}

// SortCandidates orders by urgency, then aggregate severity, then id.
func SortCandidates(c []types.ScoringCandidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].UrgencyScore != c[j].UrgencyScore {
			return c[i].UrgencyScore > c[j].UrgencyScore
		}
		if c[i].AggregateNearbySeverity != c[j].AggregateNearbySeverity {
			return c[i].AggregateNearbySeverity > c[j].AggregateNearbySeverity
		}
		return c[i].OrganizationID < c[j].OrganizationID
	})
}

// rank merges reasoning-service scores onto candidates in place. Candidates
// the service skipped keep 0.
func (e *Engine) rank(ctx context.Context, candidates []types.ScoringCandidate) {
	start := time.Now()
	entries, err := e.requestScores(ctx, candidates)
	if err != nil {
		e.logger.Warn("urgency ranking failed, returning unranked candidates",
			zap.String("adapter", adapterName),
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
		e.metrics.ObserveAdapter(adapterName, metrics.OutcomeFallback, time.Since(start))
		return
	}
	e.metrics.ObserveAdapter(adapterName, metrics.OutcomeSuccess, time.Since(start))

	byID := make(map[string]scoredEntry, len(entries))
	for _, s := range entries {
		if _, seen := byID[s.ID]; !seen {
			byID[s.ID] = s
		}
	}
	for i := range candidates {
		s, ok := byID[candidates[i].OrganizationID]
		if !ok {
			continue
		}
		candidates[i].UrgencyScore = types.ClampRange(s.Score, 0, 100)
		candidates[i].Rationale = s.Reason
	}
}

func (e *Engine) requestScores(ctx context.Context, candidates []types.ScoringCandidate) ([]scoredEntry, error) {
	if e.reasoner == nil {
		return nil, fmt.Errorf("no reasoning service configured")
	}

	payload := make([]candidatePayload, len(candidates))
	for i, c := range candidates {
		payload[i] = candidatePayload{
			ID:                      c.OrganizationID,
			Name:                    c.Name,
			Category:                c.Category,
			CurrentFunds:            c.CurrentFunds,
			AggregateNearbySeverity: c.AggregateNearbySeverity,
			NearbyIncidentCount:     c.NearbyIncidentCount,
		}
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	schema := reasoning.ScoringSchema()
	content, err := e.reasoner.Reason(ctx, reasoning.Request{
		System:     systemPrompt,
		Prompt:     fmt.Sprintf("Candidates:\n%s", body),
		SchemaName: "responder_urgency",
		Schema:     schema,
	})
	if err != nil {
		return nil, err
	}

	var resp scoringResponse
	if err := reasoning.Decode(adapterName, schema, content, &resp); err != nil {
		return nil, err
	}
	return resp.Analysis, nil
}
