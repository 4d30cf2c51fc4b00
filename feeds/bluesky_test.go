package feeds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	fireFeed  = "at://did:plc:example/app.bsky.feed.generator/fire"
	quakeFeed = "at://did:plc:example/app.bsky.feed.generator/quake"
)

func post(uri, text string) FeedEntry {
	return FeedEntry{Post: Post{URI: uri, Record: Record{Text: text}}}
}

func newFeedServer(t *testing.T, feeds map[string][]FeedEntry) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/app.bsky.feed.getFeed", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		entries, ok := feeds[r.URL.Query().Get("feed")]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"UnknownFeed","message":"feed not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(FeedResponse{Feed: entries}))
	}))
}

func TestBlueskySource_Fetch(t *testing.T) {
	srv := newFeedServer(t, map[string][]FeedEntry{
		fireFeed: {
			post("at://post/1", "Wildfire spreading near the ridge"),
			post("at://post/2", "   "),
			post("", "no uri"),
		},
		quakeFeed: {
			post("at://post/1", "Wildfire spreading near the ridge"),
			post("at://post/3", " Earthquake felt downtown "),
		},
	})
	defer srv.Close()

	src := NewBlueskySource(srv.URL, []string{fireFeed, quakeFeed}, 5, time.Second, zap.NewNop())
	reports, err := src.Fetch(context.Background(), "Cron")
	require.NoError(t, err)

	require.Len(t, reports, 2)
	assert.Equal(t, "Wildfire spreading near the ridge", reports[0].Text)
	assert.Equal(t, "Earthquake felt downtown", reports[1].Text)
	for _, r := range reports {
		assert.Equal(t, "Scraper - Cron", r.Source)
		assert.Empty(t, r.Location)
	}
}

func TestBlueskySource_PartialFailure(t *testing.T) {
	srv := newFeedServer(t, map[string][]FeedEntry{
		fireFeed: {post("at://post/1", "Smoke over the valley")},
	})
	defer srv.Close()

	src := NewBlueskySource(srv.URL, []string{"at://missing", fireFeed}, 5, time.Second, zap.NewNop())
	reports, err := src.Fetch(context.Background(), "Manual Trigger")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Scraper - Manual Trigger", reports[0].Source)
}

func TestBlueskySource_AllFeedsFail(t *testing.T) {
	srv := newFeedServer(t, nil)
	defer srv.Close()

	src := NewBlueskySource(srv.URL, []string{fireFeed}, 5, time.Second, zap.NewNop())
	_, err := src.Fetch(context.Background(), "Cron")
	require.Error(t, err)
}

func TestNewBlueskySource_ClampsLimit(t *testing.T) {
	assert.Equal(t, defaultLimit, NewBlueskySource("http://x", nil, 0, time.Second, zap.NewNop()).limit)
	assert.Equal(t, maxLimit, NewBlueskySource("http://x", nil, 500, time.Second, zap.NewNop()).limit)
}
