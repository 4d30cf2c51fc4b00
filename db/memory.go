package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/types"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	clock      clockwork.Clock
	crises     map[string]types.CrisisRecord
	responders map[string]types.ResponderOrganization
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:      clock,
		crises:     make(map[string]types.CrisisRecord),
		responders: make(map[string]types.ResponderOrganization),
	}
}

// PutResponder inserts or replaces a responder, assigning an ID when empty.
func (s *MemoryStore) PutResponder(r types.ResponderOrganization) types.ResponderOrganization {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.responders[r.ID] = r
	return r
}

func (s *MemoryStore) CreateCrisis(_ context.Context, rec types.CrisisRecord) (types.CrisisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := s.crises[rec.ID]; exists {
		return types.CrisisRecord{}, fmt.Errorf("crisis %s: %w", rec.ID, apperr.ErrConflict)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.HandledBy = cloneStrings(rec.HandledBy)
	s.crises[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) GetCrisis(_ context.Context, id string) (types.CrisisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.crises[id]
	if !ok {
		return types.CrisisRecord{}, fmt.Errorf("crisis %s: %w", id, apperr.ErrNotFound)
	}
	return rec, nil
}

func (s *MemoryStore) UpdateCrisis(_ context.Context, rec types.CrisisRecord, expectedUpdatedAt time.Time) (types.CrisisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.crises[rec.ID]
	if !ok {
		return types.CrisisRecord{}, fmt.Errorf("crisis %s: %w", rec.ID, apperr.ErrNotFound)
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return types.CrisisRecord{}, fmt.Errorf("crisis %s changed since %s: %w", rec.ID, expectedUpdatedAt.Format(time.RFC3339Nano), apperr.ErrConflict)
	}

	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = s.clock.Now()
	if !rec.UpdatedAt.After(current.UpdatedAt) {
		// A frozen clock must still move the version forward.
		rec.UpdatedAt = current.UpdatedAt.Add(time.Microsecond)
	}
	rec.HandledBy = cloneStrings(rec.HandledBy)
	s.crises[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) ListCrisesByStatus(_ context.Context, statuses ...types.Status) ([]types.CrisisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[types.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []types.CrisisRecord
	for _, rec := range s.crises {
		if want[rec.Status] {
			out = append(out, rec)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) FindOpenCrisis(_ context.Context, locationName string, situation types.SituationType) (types.CrisisRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []types.CrisisRecord
	for _, rec := range s.crises {
		if rec.IsActive() && rec.SituationType == situation && sameLocation(rec.Location.Name, locationName) {
			matching = append(matching, rec)
		}
	}
	rec, ok := newest(matching)
	return rec, ok, nil
}

func (s *MemoryStore) ListPendingAlerts(_ context.Context, minSeverity float64) ([]types.CrisisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.CrisisRecord
	for _, rec := range s.crises {
		if !rec.NotificationSent && rec.Severity >= minSeverity {
			out = append(out, rec)
		}
	}
	sortByCreated(out)
	return out, nil
}

// MarkNotified marks every id that still exists. Missing ids are reported
// together after the rest are marked.
func (s *MemoryStore) MarkNotified(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		rec, ok := s.crises[id]
		if !ok {
			errs = append(errs, fmt.Errorf("mark %s notified: %w", id, apperr.ErrNotFound))
			continue
		}
		rec.NotificationSent = true
		s.crises[id] = rec
	}
	return errors.Join(errs...)
}

func (s *MemoryStore) DeleteCrisis(_ context.Context, id, requester string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.crises[id]
	if !ok {
		return fmt.Errorf("crisis %s: %w", id, apperr.ErrNotFound)
	}
	if rec.RaisedBy == "" || rec.RaisedBy != requester {
		return &apperr.OwnershipError{RecordID: id, Requester: requester}
	}
	delete(s.crises, id)
	return nil
}

func (s *MemoryStore) PurgeCrisesBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, rec := range s.crises {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.crises, id)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) ListResponders(_ context.Context) ([]types.ResponderOrganization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ResponderOrganization, 0, len(s.responders))
	for _, r := range s.responders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortByCreated(recs []types.CrisisRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
