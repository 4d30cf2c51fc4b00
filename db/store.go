package db

import (
	"context"
	"strings"
	"time"

	"go-crisislens/types"
)

const (
	crisesCollection     = "crises"
	respondersCollection = "responders"
)

// Store is the document store shared by the pipeline, the scoring engine,
// the alert dispatcher and the HTTP handlers.
type Store interface {
	CreateCrisis(ctx context.Context, rec types.CrisisRecord) (types.CrisisRecord, error)
	GetCrisis(ctx context.Context, id string) (types.CrisisRecord, error)
	// UpdateCrisis replaces the record if its stored updatedAt still equals
	// expectedUpdatedAt, otherwise it returns apperr.ErrConflict.
	UpdateCrisis(ctx context.Context, rec types.CrisisRecord, expectedUpdatedAt time.Time) (types.CrisisRecord, error)
	ListCrisesByStatus(ctx context.Context, statuses ...types.Status) ([]types.CrisisRecord, error)
	// FindOpenCrisis returns the most recently updated active record with the
	// same situation type whose location name matches, ignoring case.
	FindOpenCrisis(ctx context.Context, locationName string, situation types.SituationType) (types.CrisisRecord, bool, error)
	ListPendingAlerts(ctx context.Context, minSeverity float64) ([]types.CrisisRecord, error)
	MarkNotified(ctx context.Context, ids []string) error
	// DeleteCrisis removes a manually raised record on behalf of its author.
	DeleteCrisis(ctx context.Context, id, requester string) error
	// PurgeCrisesBefore deletes every record created before cutoff and
	// returns how many were removed.
	PurgeCrisesBefore(ctx context.Context, cutoff time.Time) (int, error)
	ListResponders(ctx context.Context) ([]types.ResponderOrganization, error)
}

func sameLocation(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func statusStrings(statuses []types.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// newest picks the most recently updated record.
func newest(recs []types.CrisisRecord) (types.CrisisRecord, bool) {
	var best types.CrisisRecord
	found := false
	for _, r := range recs {
		if !found || r.UpdatedAt.After(best.UpdatedAt) {
			best = r
			found = true
		}
	}
	return best, found
}
