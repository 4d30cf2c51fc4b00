// Package processor is the crisis enrichment orchestrator. Every ingestion
// path (HTTP reports, manual submissions, scraped feeds) goes through
// Orchestrator.Process so classification, refinement and resolution live in
// exactly one place.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/events"
	"go-crisislens/metrics"
	"go-crisislens/reconcile"
	"go-crisislens/refinement"
	"go-crisislens/taxonomy"
	"go-crisislens/types"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultSource is used when a report arrives without one.
const DefaultSource = "manual"

// Policy decides what happens when a new crisis matches an open record.
type Policy string

const (
	// PolicyOff always creates a new record.
	PolicyOff Policy = "off"
	// PolicyMerge routes matching reports through the Update Reconciler.
	PolicyMerge Policy = "merge"
)

// Status is the per-report outcome.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusDuplicate Status = "duplicate"
	StatusNotCrisis Status = "not_crisis"
	StatusError     Status = "error"
)

type Classifier interface {
	Classify(ctx context.Context, text, source, location string) (types.Assessment, error)
}

type Refiner interface {
	Refine(ctx context.Context, text string, raw types.Assessment) (types.Assessment, refinement.Outcome)
}

type LocationResolver interface {
	Resolve(ctx context.Context, refined, raw types.Assessment, hint string) types.Location
}

type ResponderMatcher interface {
	Match(ctx context.Context, locationName string) ([]string, error)
}

type UpdateReconciler interface {
	Reconcile(ctx context.Context, newText string, newRaw types.Assessment, existing types.CrisisRecord) reconcile.Result
}

type LocationHinter interface {
	Hint(ctx context.Context, text string) (string, error)
}

// Store is the slice of the document store the orchestrator writes through.
type Store interface {
	CreateCrisis(ctx context.Context, rec types.CrisisRecord) (types.CrisisRecord, error)
	GetCrisis(ctx context.Context, id string) (types.CrisisRecord, error)
	UpdateCrisis(ctx context.Context, rec types.CrisisRecord, expectedUpdatedAt time.Time) (types.CrisisRecord, error)
	FindOpenCrisis(ctx context.Context, locationName string, situation types.SituationType) (types.CrisisRecord, bool, error)
}

// Report is one free-text situational report.
type Report struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Location string `json:"location"`
	// RaisedBy marks a report authored by a responder organization.
	RaisedBy string `json:"raisedBy,omitempty"`
}

// Result is what Process returns. Record is nil for non-crisis reports.
type Result struct {
	CrisisDetected bool                `json:"crisisDetected"`
	Status         Status              `json:"status"`
	Record         *types.CrisisRecord `json:"record,omitempty"`
	Analysis       types.Assessment    `json:"analysis"`
}

// Deps are the collaborators of an Orchestrator. Hinter, Reconciler and
// Publisher are optional.
type Deps struct {
	Classifier Classifier
	Refiner    Refiner
	Resolver   LocationResolver
	Matcher    ResponderMatcher
	Reconciler UpdateReconciler
	Hinter     LocationHinter
	Store      Store
	Publisher  events.Publisher
	Clock      clockwork.Clock
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Options tune orchestration policy.
type Options struct {
	Policy           Policy
	Workers          int
	ClassifyAttempts int
	ClassifyBackoff  time.Duration
}

// Orchestrator is the Crisis Enrichment Orchestrator.
type Orchestrator struct {
	Deps
	opts Options
}

func New(d Deps, opts Options) *Orchestrator {
	if d.Publisher == nil {
		d.Publisher = events.Nop{}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if opts.Policy == "" {
		opts.Policy = PolicyOff
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ClassifyAttempts < 1 {
		opts.ClassifyAttempts = 1
	}
	return &Orchestrator{Deps: d, opts: opts}
}

// Process runs one report through the pipeline. It returns an
// *apperr.InputError for empty text and an *apperr.InfrastructureError when
// the classifier or the store fails; every other adapter failure degrades.
func (o *Orchestrator) Process(ctx context.Context, report Report) (Result, error) {
	text := strings.TrimSpace(report.Text)
	if text == "" {
		o.Metrics.ObserveReport("rejected")
		return Result{}, &apperr.InputError{Field: "text", Message: "text is required"}
	}
	source := strings.TrimSpace(report.Source)
	if source == "" {
		source = DefaultSource
	}
	hint := o.locationHint(ctx, text, report.Location)

	raw, err := o.classify(ctx, text, source, hint)
	if err != nil {
		o.Metrics.ObserveReport(string(StatusError))
		return Result{}, &apperr.InfrastructureError{Stage: "classify", Err: err}
	}

	if !raw.IsCrisis {
		o.Metrics.ObserveReport(string(StatusNotCrisis))
		return Result{CrisisDetected: false, Status: StatusNotCrisis, Analysis: raw}, nil
	}

	refined, outcome := o.Refiner.Refine(ctx, text, raw)
	// A fallback hands back raw itself; resolve it as raw so the location
	// source stays truthful.
	resolveFrom := refined
	if outcome == refinement.Fallback {
		resolveFrom = types.Assessment{}
	}
	loc := o.Resolver.Resolve(ctx, resolveFrom, raw, hint)
	label := refined.TypeLabel()
	situation := taxonomy.MapToTaxonomy(label)

	if o.opts.Policy == PolicyMerge && loc.Name != types.UnknownLocation && o.Reconciler != nil {
		existing, found, err := o.Store.FindOpenCrisis(ctx, loc.Name, situation)
		if err != nil {
			o.Logger.Warn("open crisis lookup failed, creating new record",
				zap.String("location", loc.Name),
				zap.Error(err),
			)
		} else if found {
			res, err := o.reconcileWith(ctx, text, raw, existing)
			if err != nil {
				o.Metrics.ObserveReport(string(StatusError))
				return Result{}, err
			}
			o.Metrics.ObserveReport(string(res.Status))
			return res, nil
		}
	}

	handledBy, err := o.Matcher.Match(ctx, loc.Name)
	if err != nil {
		o.Logger.Warn("responder matching failed, record will have no responders",
			zap.String("location", loc.Name),
			zap.Error(err),
		)
		handledBy = []string{}
	}

	now := o.Clock.Now()
	record := types.CrisisRecord{
		Title:            fmt.Sprintf("Crisis Alert: %s in %s", label, loc.Name),
		Description:      text,
		SituationType:    situation,
		Severity:         types.Clamp01(refined.Severity.Overall),
		Status:           types.Open,
		Location:         loc,
		Analysis:         refined,
		HandledBy:        handledBy,
		NotificationSent: false,
		RaisedBy:         strings.TrimSpace(report.RaisedBy),
		Source:           source,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	saved, err := o.Store.CreateCrisis(ctx, record)
	if err != nil {
		o.Metrics.ObserveReport(string(StatusError))
		return Result{}, &apperr.InfrastructureError{Stage: "persist", Err: err}
	}

	o.Logger.Info("crisis record created",
		zap.String("id", saved.ID),
		zap.String("location", saved.Location.Name),
		zap.String("location_source", saved.Location.Source),
		zap.String("situation", string(saved.SituationType)),
		zap.Float64("severity", saved.Severity),
		zap.String("refinement", string(outcome)),
		zap.Int("responders", len(saved.HandledBy)),
	)
	o.publish(ctx, events.Created, saved)
	o.Metrics.ObserveReport("crisis")

	return Result{CrisisDetected: true, Status: StatusCreated, Record: &saved, Analysis: refined}, nil
}

// locationHint is the location sent to the classifier: the caller's value,
// then an extracted entity, then types.UnknownLocation.
func (o *Orchestrator) locationHint(ctx context.Context, text, given string) string {
	if hint := strings.TrimSpace(given); hint != "" {
		return hint
	}
	if o.Hinter == nil {
		return types.UnknownLocation
	}
	hint, err := o.Hinter.Hint(ctx, text)
	if err != nil {
		o.Logger.Warn("location hint extraction failed", zap.Error(err))
		return types.UnknownLocation
	}
	if hint = strings.TrimSpace(hint); hint == "" {
		return types.UnknownLocation
	}
	return hint
}

// classify retries retryable classifier failures with a linear backoff.
func (o *Orchestrator) classify(ctx context.Context, text, source, hint string) (types.Assessment, error) {
	var lastErr error
	for attempt := 1; attempt <= o.opts.ClassifyAttempts; attempt++ {
		raw, err := o.Classifier.Classify(ctx, text, source, hint)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !apperr.IsRetryable(err) || attempt == o.opts.ClassifyAttempts {
			break
		}
		o.Logger.Warn("classification failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return types.Assessment{}, errors.Join(lastErr, ctx.Err())
		case <-time.After(o.opts.ClassifyBackoff * time.Duration(attempt)):
		}
	}
	return types.Assessment{}, lastErr
}

func (o *Orchestrator) publish(ctx context.Context, kind events.Kind, rec types.CrisisRecord) {
	if err := o.Publisher.Publish(ctx, kind, rec); err != nil {
		o.Logger.Warn("failed to publish crisis event",
			zap.String("kind", string(kind)),
			zap.String("id", rec.ID),
			zap.Error(err),
		)
	}
}
