package db

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/types"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// InitFirestore creates a Firestore client from base64-encoded service
// account credentials.
func InitFirestore(ctx context.Context, encodedCreds string) (*firestore.Client, error) {
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Firestore credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %w", err)
	}
	return client, nil
}

// FirestoreStore keeps crisis records in the "crises" collection and reads
// responders from "responders".
type FirestoreStore struct {
	client *firestore.Client
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewFirestoreStore(client *firestore.Client, clock clockwork.Clock, logger *zap.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, clock: clock, logger: logger}
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) crises() *firestore.CollectionRef {
	return s.client.Collection(crisesCollection)
}

func (s *FirestoreStore) CreateCrisis(ctx context.Context, rec types.CrisisRecord) (types.CrisisRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.CreatedAt = firestoreTime(rec.CreatedAt)
	rec.UpdatedAt = firestoreTime(rec.UpdatedAt)

	if _, err := s.crises().Doc(rec.ID).Create(ctx, rec); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return types.CrisisRecord{}, fmt.Errorf("crisis %s: %w", rec.ID, apperr.ErrConflict)
		}
		return types.CrisisRecord{}, fmt.Errorf("failed to create crisis %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (s *FirestoreStore) GetCrisis(ctx context.Context, id string) (types.CrisisRecord, error) {
	doc, err := s.crises().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.CrisisRecord{}, fmt.Errorf("crisis %s: %w", id, apperr.ErrNotFound)
		}
		return types.CrisisRecord{}, fmt.Errorf("error getting crisis %s: %w", id, err)
	}
	return decodeCrisis(doc)
}

func (s *FirestoreStore) UpdateCrisis(ctx context.Context, rec types.CrisisRecord, expectedUpdatedAt time.Time) (types.CrisisRecord, error) {
	ref := s.crises().Doc(rec.ID)
	expected := firestoreTime(expectedUpdatedAt)

	var saved types.CrisisRecord
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("crisis %s: %w", rec.ID, apperr.ErrNotFound)
			}
			return err
		}
		current, err := decodeCrisis(doc)
		if err != nil {
			return err
		}
		if !current.UpdatedAt.Equal(expected) {
			return fmt.Errorf("crisis %s changed since %s: %w", rec.ID, expected.Format(time.RFC3339Nano), apperr.ErrConflict)
		}

		saved = rec
		saved.CreatedAt = current.CreatedAt
		saved.UpdatedAt = firestoreTime(s.clock.Now())
		if !saved.UpdatedAt.After(current.UpdatedAt) {
			saved.UpdatedAt = current.UpdatedAt.Add(time.Microsecond)
		}
		return tx.Set(ref, saved)
	})
	if err != nil {
		return types.CrisisRecord{}, err
	}
	return saved, nil
}

func (s *FirestoreStore) ListCrisesByStatus(ctx context.Context, statuses ...types.Status) ([]types.CrisisRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	return s.query(ctx, s.crises().Where("status", "in", statusStrings(statuses)))
}

func (s *FirestoreStore) FindOpenCrisis(ctx context.Context, locationName string, situation types.SituationType) (types.CrisisRecord, bool, error) {
	q := s.crises().
		Where("status", "in", statusStrings(types.ActiveStatuses)).
		Where("situationType", "==", string(situation))
	recs, err := s.query(ctx, q)
	if err != nil {
		return types.CrisisRecord{}, false, err
	}

	matching := recs[:0]
	for _, r := range recs {
		if sameLocation(r.Location.Name, locationName) {
			matching = append(matching, r)
		}
	}
	rec, ok := newest(matching)
	return rec, ok, nil
}

func (s *FirestoreStore) ListPendingAlerts(ctx context.Context, minSeverity float64) ([]types.CrisisRecord, error) {
	q := s.crises().
		Where("notificationSent", "==", false).
		Where("severity", ">=", minSeverity)
	return s.query(ctx, q)
}

// MarkNotified flips notificationSent with a BulkWriter. Individual write
// failures are collected and returned together.
func (s *FirestoreStore) MarkNotified(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	bw := s.client.BulkWriter(ctx)
	seen := make(map[string]bool, len(ids))
	jobs := make(map[string]*firestore.BulkWriterJob, len(ids))
	var errs []error

	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		job, err := bw.Update(s.crises().Doc(id), []firestore.Update{
			{Path: "notificationSent", Value: true},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", id, err))
			continue
		}
		jobs[id] = job
	}

	bw.End()

	for id, job := range jobs {
		if _, err := job.Results(); err != nil {
			if status.Code(err) == codes.NotFound {
				err = apperr.ErrNotFound
			}
			errs = append(errs, fmt.Errorf("mark %s notified: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *FirestoreStore) DeleteCrisis(ctx context.Context, id, requester string) error {
	ref := s.crises().Doc(id)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("crisis %s: %w", id, apperr.ErrNotFound)
			}
			return err
		}
		rec, err := decodeCrisis(doc)
		if err != nil {
			return err
		}
		if rec.RaisedBy == "" || rec.RaisedBy != requester {
			return &apperr.OwnershipError{RecordID: id, Requester: requester}
		}
		return tx.Delete(ref)
	})
}

// PurgeCrisesBefore removes records whose createdAt is older than cutoff.
func (s *FirestoreStore) PurgeCrisesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	iter := s.crises().Where("createdAt", "<", firestoreTime(cutoff)).Select().Documents(ctx)
	defer iter.Stop()

	var refs []*firestore.DocumentRef
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("error iterating expired crises: %w", err)
		}
		refs = append(refs, doc.Ref)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	var errs []error
	for _, ref := range refs {
		job, err := bw.Delete(ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("enqueue delete %s: %w", ref.ID, err))
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()

	purged := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, err)
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

func (s *FirestoreStore) ListResponders(ctx context.Context) ([]types.ResponderOrganization, error) {
	iter := s.client.Collection(respondersCollection).Documents(ctx)
	defer iter.Stop()

	var responders []types.ResponderOrganization
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating responders collection: %w", err)
		}

		var r types.ResponderOrganization
		if err := doc.DataTo(&r); err != nil {
			s.logger.Warn("skipping malformed responder", zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		r.ID = doc.Ref.ID
		responders = append(responders, r)
	}
	return responders, nil
}

func (s *FirestoreStore) query(ctx context.Context, q firestore.Query) ([]types.CrisisRecord, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var recs []types.CrisisRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating crises: %w", err)
		}
		rec, err := decodeCrisis(doc)
		if err != nil {
			s.logger.Warn("skipping malformed crisis", zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func decodeCrisis(doc *firestore.DocumentSnapshot) (types.CrisisRecord, error) {
	var rec types.CrisisRecord
	if err := doc.DataTo(&rec); err != nil {
		return types.CrisisRecord{}, fmt.Errorf("error converting document %s to crisis: %w", doc.Ref.ID, err)
	}
	rec.ID = doc.Ref.ID
	return rec, nil
}

// firestoreTime matches the microsecond precision Firestore stores.
func firestoreTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
