package mlmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-crisislens/apperr"
	"go-crisislens/metrics"
	"go-crisislens/types"

	"golang.org/x/time/rate"
)

const adapterName = "classifier"

// Request is the payload the classifier endpoint accepts.
type Request struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Location string `json:"location"`
}

// Client calls the external crisis classifier. It performs no retries;
// the orchestrator owns retry policy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

// NewClient creates a classifier client. ratePerSecond bounds calls shared by
// every report in the process.
func NewClient(baseURL string, timeout time.Duration, ratePerSecond float64, m *metrics.Metrics) *Client {
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		metrics:    m,
	}
}

// Classify returns the classifier's raw assessment. Any transport, status or
// decode failure comes back as *apperr.AdapterError.
func (c *Client) Classify(ctx context.Context, text, source, location string) (types.Assessment, error) {
	start := time.Now()
	assessment, err := c.classify(ctx, text, source, location)
	if err != nil {
		c.metrics.ObserveAdapter(adapterName, metrics.OutcomeFailure, time.Since(start))
		return types.Assessment{}, &apperr.AdapterError{Adapter: adapterName, Err: err}
	}
	c.metrics.ObserveAdapter(adapterName, metrics.OutcomeSuccess, time.Since(start))
	return assessment, nil
}

func (c *Client) classify(ctx context.Context, text, source, location string) (types.Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return types.Assessment{}, fmt.Errorf("rate limiter: %w", err)
	}

	payloadBytes, err := json.Marshal(Request{Text: text, Source: source, Location: location})
	if err != nil {
		return types.Assessment{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze_crisis", bytes.NewReader(payloadBytes))
	if err != nil {
		return types.Assessment{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Assessment{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.Assessment{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, body)
	}

	var assessment types.Assessment
	if err := json.NewDecoder(resp.Body).Decode(&assessment); err != nil {
		return types.Assessment{}, fmt.Errorf("decode response: %w", err)
	}
	return assessment, nil
}
