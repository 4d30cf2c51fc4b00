// Package reconcile decides whether a new report about an ongoing situation
// materially supersedes the stored crisis record.
package reconcile

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

const adapterName = "reconciler"

const systemPrompt = `You compare a new crisis report with an existing crisis record about what may be
the same situation. Decide whether the new report is materially different: higher severity,
a corrected or more precise location, new casualty or impact figures, or a change in crisis type.
Rephrasings and repeated facts are not updates.

When has_update is true, merged_analysis must combine the existing analysis with the new facts.
When has_update is false, merged_analysis must repeat the existing analysis unchanged.`

// Result is the reconciler's decision. MergedAnalysis is set only when HasUpdate is true.
type Result struct {
	HasUpdate      bool              `json:"hasUpdate"`
	Reason         string            `json:"reason,omitempty"`
	MergedAnalysis *types.Assessment `json:"mergedAnalysis,omitempty"`
}

type response struct {
	HasUpdate      bool             `json:"has_update"`
	Reason         string           `json:"reason"`
	MergedAnalysis types.Assessment `json:"merged_analysis"`
}

// Reconciler is the Update Reconciler.
type Reconciler struct {
	reasoner reasoning.Reasoner
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(r reasoning.Reasoner, logger *zap.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{reasoner: r, logger: logger, metrics: m}
}

// Reconcile compares the new report against existing. Any service or
// validation failure yields HasUpdate false: unverified updates are dropped.
func (r *Reconciler) Reconcile(ctx context.Context, newText string, newRaw types.Assessment, existing types.CrisisRecord) Result {
	start := time.Now()
	resp, err := r.reconcile(ctx, newText, newRaw, existing)
	if err != nil {
		r.logger.Warn("reconciliation failed, keeping existing record",
			zap.String("adapter", adapterName),
			zap.String("record_id", existing.ID),
			zap.Error(err),
		)
		r.metrics.ObserveAdapter(adapterName, metrics.OutcomeFallback, time.Since(start))
		return Result{}
	}
	r.metrics.ObserveAdapter(adapterName, metrics.OutcomeSuccess, time.Since(start))

	if !resp.HasUpdate {
		return Result{Reason: resp.Reason}
	}
	merged := resp.MergedAnalysis
	return Result{HasUpdate: true, Reason: resp.Reason, MergedAnalysis: &merged}
}

func (r *Reconciler) reconcile(ctx context.Context, newText string, newRaw types.Assessment, existing types.CrisisRecord) (response, error) {
	if r.reasoner == nil {
		return response{}, fmt.Errorf("no reasoning service configured")
	}

	newJSON, err := json.Marshal(newRaw)
	if err != nil {
		return response{}, fmt.Errorf("marshal new assessment: %w", err)
	}
	existingJSON, err := json.Marshal(existing.Analysis)
	if err != nil {
		return response{}, fmt.Errorf("marshal existing analysis: %w", err)
	}

	prompt := fmt.Sprintf(
		"Existing record:\nTitle: %s\nDescription: %s\nLocation: %s\nSeverity: %.2f\nAnalysis: %s\n\nNew report:\nText: %s\nAnalysis: %s",
		existing.Title, existing.Description, existing.Location.Name, existing.Severity, existingJSON,
		newText, newJSON,
	)
	schema := reasoning.ReconcileSchema()

	content, err := r.reasoner.Reason(ctx, reasoning.Request{
		System:     systemPrompt,
		Prompt:     prompt,
		SchemaName: "crisis_reconciliation",
		Schema:     schema,
	})
	if err != nil {
		return response{}, err
	}

	var resp response
	if err := reasoning.Decode(adapterName, schema, content, &resp); err != nil {
		return response{}, err
	}
	return resp, nil
}
