package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-crisislens/apperr"
	"go-crisislens/events"
	"go-crisislens/reconcile"
	"go-crisislens/taxonomy"
	"go-crisislens/types"

	"go.uber.org/zap"
)

// ReconcileResult is the reconciler's decision plus the record as it stands
// afterwards.
type ReconcileResult struct {
	reconcile.Result
	Applied bool                `json:"applied"`
	Record  *types.CrisisRecord `json:"record,omitempty"`
}

// ReconcileAgainstExisting compares a new report with the record id. raw may
// be nil, in which case the text is classified first. An accepted update is
// written with an optimistic check on the record's updatedAt.
func (o *Orchestrator) ReconcileAgainstExisting(ctx context.Context, text string, raw *types.Assessment, id string) (ReconcileResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReconcileResult{}, &apperr.InputError{Field: "text", Message: "text is required"}
	}
	if strings.TrimSpace(id) == "" {
		return ReconcileResult{}, &apperr.InputError{Field: "id", Message: "record id is required"}
	}
	if o.Reconciler == nil {
		return ReconcileResult{}, errors.New("no update reconciler configured")
	}

	existing, err := o.Store.GetCrisis(ctx, id)
	if err != nil {
		return ReconcileResult{}, err
	}

	var assessment types.Assessment
	if raw != nil {
		assessment = *raw
	} else {
		assessment, err = o.classify(ctx, text, DefaultSource, existing.Location.Name)
		if err != nil {
			return ReconcileResult{}, &apperr.InfrastructureError{Stage: "classify", Err: err}
		}
	}

	decision := o.Reconciler.Reconcile(ctx, text, assessment, existing)
	if !decision.HasUpdate {
		return ReconcileResult{Result: decision, Record: &existing}, nil
	}

	saved, err := o.Store.UpdateCrisis(ctx, applyMerge(existing, *decision.MergedAnalysis), existing.UpdatedAt)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("apply update to crisis %s: %w", id, err)
	}
	o.publish(ctx, events.Updated, saved)
	return ReconcileResult{Result: decision, Applied: true, Record: &saved}, nil
}

// reconcileWith runs the merge policy for a report that matched an open
// record. A lost optimistic write is tolerated and reported as a duplicate.
func (o *Orchestrator) reconcileWith(ctx context.Context, text string, raw types.Assessment, existing types.CrisisRecord) (Result, error) {
	decision := o.Reconciler.Reconcile(ctx, text, raw, existing)
	if !decision.HasUpdate {
		o.Logger.Info("report matches open crisis without new facts",
			zap.String("id", existing.ID),
			zap.String("reason", decision.Reason),
		)
		return Result{CrisisDetected: true, Status: StatusDuplicate, Record: &existing, Analysis: existing.Analysis}, nil
	}

	saved, err := o.Store.UpdateCrisis(ctx, applyMerge(existing, *decision.MergedAnalysis), existing.UpdatedAt)
	if errors.Is(err, apperr.ErrConflict) {
		o.Logger.Warn("crisis changed concurrently, update dropped",
			zap.String("id", existing.ID),
			zap.Error(err),
		)
		return Result{CrisisDetected: true, Status: StatusDuplicate, Record: &existing, Analysis: existing.Analysis}, nil
	}
	if err != nil {
		return Result{}, &apperr.InfrastructureError{Stage: "persist", Err: err}
	}

	o.Logger.Info("crisis record updated",
		zap.String("id", saved.ID),
		zap.Float64("severity", saved.Severity),
		zap.String("reason", decision.Reason),
	)
	o.publish(ctx, events.Updated, saved)
	return Result{CrisisDetected: true, Status: StatusUpdated, Record: &saved, Analysis: saved.Analysis}, nil
}

// applyMerge folds a merged assessment into the record. The report text in
// Description, responders, status, authorship and notification state are kept.
func applyMerge(existing types.CrisisRecord, merged types.Assessment) types.CrisisRecord {
	rec := existing
	rec.Analysis = merged
	rec.Severity = types.Clamp01(merged.Severity.Overall)
	rec.SituationType = taxonomy.MapToTaxonomy(merged.TypeLabel())

	if lon, lat, ok := merged.Location.Coordinates.Point(); ok {
		rec.Location.Lon, rec.Location.Lat = lon, lat
		rec.Location.Source = types.SourceRefined
		if name := merged.LocationName(); name != "" {
			rec.Location.Name = name
		}
	}
	rec.Title = fmt.Sprintf("Crisis Alert: %s in %s", merged.TypeLabel(), rec.Location.Name)
	return rec
}
