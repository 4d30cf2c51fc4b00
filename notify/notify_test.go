package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"go-crisislens/db"
	"go-crisislens/metrics"
	"go-crisislens/types"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func fastOptions() WebhookOptions {
	return WebhookOptions{RetryMax: 2, RetryWaitMin: time.Millisecond, RetryWaitMax: 2 * time.Millisecond}
}

func sampleRecord() types.CrisisRecord {
	return types.CrisisRecord{
		ID:            "rec-1",
		Title:         "Crisis Alert: Flood in Chennai",
		Description:   "Heavy flooding in low-lying areas.",
		SituationType: types.Disaster,
		Severity:      0.82,
		Status:        types.Open,
		Location:      types.Location{Name: "Chennai", Lat: 13.08, Lon: 80.27, Source: types.SourceRefined},
		HandledBy:     []string{"ngo-1", "ngo-2"},
		CreatedAt:     epoch,
		UpdatedAt:     epoch,
	}
}

func TestWebhookSender_Send(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, fastOptions(), zap.NewNop())
	require.NoError(t, sender.Send(context.Background(), sampleRecord()))

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "Crisis Alert: Flood in Chennai", embed.Title)
	assert.Equal(t, colorDisaster, embed.Color)
	assert.Equal(t, "2025-03-14T09:00:00Z", embed.Timestamp)
	assert.Contains(t, embed.Fields, EmbedField{Name: "Severity", Value: "0.82", Inline: true})
	assert.Contains(t, embed.Fields, EmbedField{Name: "Responders", Value: "2 matched", Inline: true})
}

func TestWebhookSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, fastOptions(), zap.NewNop())
	require.NoError(t, sender.Send(context.Background(), sampleRecord()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookSender_Failures(t *testing.T) {
	t.Run("retries exhausted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewWebhookSender(srv.URL, fastOptions(), zap.NewNop()).Send(context.Background(), sampleRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "giving up")
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "unknown webhook", http.StatusNotFound)
		}))
		defer srv.Close()

		err := NewWebhookSender(srv.URL, fastOptions(), zap.NewNop()).Send(context.Background(), sampleRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestBuildPayload_TruncatesDescription(t *testing.T) {
	rec := sampleRecord()
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'a'
	}
	rec.Description = string(long)
	rec.SituationType = types.Disease

	p := BuildPayload(rec)
	assert.Len(t, p.Embeds[0].Description, maxDescriptionLength)
	assert.Equal(t, colorDisease, p.Embeds[0].Color)
}

func TestBuildPayload_TruncatesOnRuneBoundary(t *testing.T) {
	rec := sampleRecord()
	rec.Description = strings.Repeat("சென்னையில் வெள்ளம் ", 200)

	got := BuildPayload(rec).Embeds[0].Description
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxDescriptionLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.HasPrefix(rec.Description, strings.TrimSuffix(got, "...")))

	rec.Description = "சென்னையில் வெள்ளம்"
	assert.Equal(t, rec.Description, BuildPayload(rec).Embeds[0].Description)
}

type fakeSender struct {
	fail map[string]bool
	sent []string
}

func (f *fakeSender) Send(_ context.Context, rec types.CrisisRecord) error {
	if f.fail[rec.Title] {
		return errors.New("webhook unavailable")
	}
	f.sent = append(f.sent, rec.Title)
	return nil
}

func seed(t *testing.T, store *db.MemoryStore, title string, severity float64) types.CrisisRecord {
	t.Helper()
	rec, err := store.CreateCrisis(context.Background(), types.CrisisRecord{
		Title:         title,
		SituationType: types.Disaster,
		Severity:      severity,
		Status:        types.Open,
		Location:      types.Location{Name: title},
	})
	require.NoError(t, err)
	return rec
}

func TestDispatcher_Run(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore(clockwork.NewFakeClockAt(epoch))
	severe := seed(t, store, "severe", 0.9)
	flaky := seed(t, store, "flaky", 0.7)
	seed(t, store, "mild", 0.3)

	sender := &fakeSender{fail: map[string]bool{"flaky": true}}
	m := metrics.NewForTesting()
	d := NewDispatcher(store, sender, 0.65, zap.NewNop(), m)

	sent, failed, err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"severe"}, sender.sent)

	got, err := store.GetCrisis(ctx, severe.ID)
	require.NoError(t, err)
	assert.True(t, got.NotificationSent)

	got, err = store.GetCrisis(ctx, flaky.ID)
	require.NoError(t, err)
	assert.False(t, got.NotificationSent)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("failed")))

	// A delivered record is never sent again; the failed one is retried.
	sender.fail = nil
	sent, failed, err = d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, failed)
	assert.Equal(t, []string{"severe", "flaky"}, sender.sent)

	sent, _, err = d.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

type brokenStore struct{}

func (brokenStore) ListPendingAlerts(context.Context, float64) ([]types.CrisisRecord, error) {
	return nil, errors.New("store offline")
}

func (brokenStore) MarkNotified(context.Context, []string) error { return nil }

func TestDispatcher_StoreFailure(t *testing.T) {
	d := NewDispatcher(brokenStore{}, &fakeSender{}, 0.65, zap.NewNop(), nil)
	_, _, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store offline")
}
