// Package nlp extracts place names from report text with the Cloud Natural
// Language API. The orchestrator uses it for reports that arrive without a
// location hint.
package nlp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go-crisislens/metrics"

	language "cloud.google.com/go/language/apiv2"
	"cloud.google.com/go/language/apiv2/languagepb"
	"google.golang.org/api/option"
)

const adapterName = "nlp"

// Entity represents a named entity detected in the text.
type Entity struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
	Mentions []EntityMention   `json:"mentions"`
}

// EntityMention holds details about an entity mention.
type EntityMention struct {
	Content     string  `json:"content"`
	BeginOffset int32   `json:"begin_offset"`
	Probability float32 `json:"probability"`
}

// EntityAnalyzer extracts entities from text, most salient first.
type EntityAnalyzer interface {
	AnalyzeEntities(ctx context.Context, text string) ([]Entity, error)
}

// LanguageClient implements EntityAnalyzer with Cloud Natural Language v2.
type LanguageClient struct {
	client  *language.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewLanguageClient creates a client from base64-encoded service account credentials.
func NewLanguageClient(ctx context.Context, encodedCreds string, timeout time.Duration, m *metrics.Metrics) (*LanguageClient, error) {
	creds, err := base64.StdEncoding.DecodeString(encodedCreds)
	if err != nil {
		return nil, fmt.Errorf("failed to decode natural language credentials: %w", err)
	}

	client, err := language.NewClient(ctx, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create natural language client: %w", err)
	}
	return &LanguageClient{client: client, timeout: timeout, metrics: m}, nil
}

func (c *LanguageClient) Close() error {
	return c.client.Close()
}

func (c *LanguageClient) AnalyzeEntities(ctx context.Context, text string) ([]Entity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &languagepb.AnalyzeEntitiesRequest{
		Document: &languagepb.Document{
			Source: &languagepb.Document_Content{
				Content: text,
			},
			Type: languagepb.Document_PLAIN_TEXT,
		},
		EncodingType: languagepb.EncodingType_UTF8,
	}

	start := time.Now()
	resp, err := c.client.AnalyzeEntities(ctx, req)
	if err != nil {
		c.metrics.ObserveAdapter(adapterName, metrics.OutcomeFailure, time.Since(start))
		return nil, fmt.Errorf("AnalyzeEntities error: %w", err)
	}
	c.metrics.ObserveAdapter(adapterName, metrics.OutcomeSuccess, time.Since(start))

	return convertEntities(resp.Entities), nil
}

func convertEntities(in []*languagepb.Entity) []Entity {
	entities := make([]Entity, 0, len(in))
	for _, e := range in {
		var mentions []EntityMention
		for _, m := range e.Mentions {
			mentions = append(mentions, EntityMention{
				Content:     m.GetText().GetContent(),
				BeginOffset: m.GetText().GetBeginOffset(),
				Probability: m.GetProbability(),
			})
		}
		md := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			md[k] = v
		}
		entities = append(entities, Entity{
			Name:     e.Name,
			Type:     e.Type.String(),
			Metadata: md,
			Mentions: mentions,
		})
	}
	return entities
}

// LocationHinter picks a place name out of free text.
type LocationHinter struct {
	analyzer EntityAnalyzer
}

func NewLocationHinter(a EntityAnalyzer) *LocationHinter {
	return &LocationHinter{analyzer: a}
}

// Hint returns the first LOCATION or ADDRESS entity, or "" when there is none.
func (h *LocationHinter) Hint(ctx context.Context, text string) (string, error) {
	entities, err := h.analyzer.AnalyzeEntities(ctx, text)
	if err != nil {
		return "", err
	}
	for _, e := range entities {
		if e.Type != "LOCATION" && e.Type != "ADDRESS" {
			continue
		}
		if name := strings.TrimSpace(e.Name); name != "" {
			return name, nil
		}
	}
	return "", nil
}
