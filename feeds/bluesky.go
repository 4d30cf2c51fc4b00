// Package feeds pulls public posts that are run through the enrichment
// pipeline as scraped reports.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-crisislens/processor"

	"github.com/bluesky-social/indigo/xrpc"
	"go.uber.org/zap"
)

const (
	feedMethod   = "app.bsky.feed.getFeed"
	defaultLimit = 10
	maxLimit     = 100
)

// FeedResponse is the subset of app.bsky.feed.getFeed the pipeline reads.
type FeedResponse struct {
	Cursor string      `json:"cursor"`
	Feed   []FeedEntry `json:"feed"`
}

type FeedEntry struct {
	Post Post `json:"post"`
}

type Post struct {
	URI       string `json:"uri"`
	CID       string `json:"cid"`
	IndexedAt string `json:"indexedAt"`
	Author    Author `json:"author"`
	Record    Record `json:"record"`
}

type Author struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

type Record struct {
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs"`
	Text      string   `json:"text"`
}

// BlueskySource reads generator feeds from the public Bluesky API.
type BlueskySource struct {
	client *xrpc.Client
	feeds  []string
	limit  int
	logger *zap.Logger
}

// NewBlueskySource creates a source for the given feed AT-URIs. limit is
// clamped to the API range of 1..100.
func NewBlueskySource(host string, feedURIs []string, limit int, timeout time.Duration, logger *zap.Logger) *BlueskySource {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return &BlueskySource{
		client: &xrpc.Client{
			Client: &http.Client{Timeout: timeout},
			Host:   strings.TrimRight(host, "/"),
		},
		feeds:  feedURIs,
		limit:  limit,
		logger: logger,
	}
}

// Fetch returns one report per distinct post across all feeds. trigger names
// what started the run and ends up in each report's source. A feed that
// fails is logged and skipped; Fetch only errors when every feed failed.
func (b *BlueskySource) Fetch(ctx context.Context, trigger string) ([]processor.Report, error) {
	source := "Scraper - " + trigger
	seen := make(map[string]struct{})
	var reports []processor.Report
	var lastErr error
	failures := 0

	for _, uri := range b.feeds {
		out, err := b.fetchFeed(ctx, uri)
		if err != nil {
			failures++
			lastErr = err
			b.logger.Warn("feed fetch failed", zap.String("feed", uri), zap.Error(err))
			continue
		}

		for _, entry := range out.Feed {
			post := entry.Post
			text := strings.TrimSpace(post.Record.Text)
			if post.URI == "" || text == "" {
				continue
			}
			if _, dup := seen[post.URI]; dup {
				continue
			}
			seen[post.URI] = struct{}{}
			reports = append(reports, processor.Report{Text: text, Source: source})
		}
	}

	if len(b.feeds) > 0 && failures == len(b.feeds) {
		return nil, fmt.Errorf("all %d feeds failed: %w", failures, lastErr)
	}
	b.logger.Info("feeds fetched", zap.Int("feeds", len(b.feeds)), zap.Int("reports", len(reports)))
	return reports, nil
}

func (b *BlueskySource) fetchFeed(ctx context.Context, uri string) (FeedResponse, error) {
	params := map[string]interface{}{
		"feed":  uri,
		"limit": b.limit,
	}

	var out FeedResponse
	if err := b.client.Do(ctx, xrpc.Query, "json", feedMethod, params, nil, &out); err != nil {
		return FeedResponse{}, fmt.Errorf("fetch feed %s: %w", uri, err)
	}
	return out, nil
}
