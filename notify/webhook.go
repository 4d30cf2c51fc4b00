package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go-crisislens/types"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	colorDisaster = 0xE74C3C
	colorDisease  = 0xF39C12
	colorOther    = 0x3498DB

	maxDescriptionLength = 2048
)

// Embed is one rich block of a webhook alert.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// WebhookPayload is the body posted to the alert webhook.
type WebhookPayload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds"`
}

// WebhookOptions tunes delivery retries.
type WebhookOptions struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
}

// WebhookSender posts severe-record alerts to a chat-style webhook.
type WebhookSender struct {
	url    string
	client *retryablehttp.Client
}

// NewWebhookSender builds a sender. Transient failures (connection errors,
// 429, 5xx) are retried by the underlying client.
func NewWebhookSender(url string, opts WebhookOptions, logger *zap.Logger) *WebhookSender {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}
	client.Logger = zapLeveled{logger.Sugar()}

	return &WebhookSender{url: url, client: client}
}

// Send delivers one alert for rec.
func (w *WebhookSender) Send(ctx context.Context, rec types.CrisisRecord) error {
	payload, err := json.Marshal(BuildPayload(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CrisisLens-Alerts/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// BuildPayload renders the alert for one record.
func BuildPayload(rec types.CrisisRecord) WebhookPayload {
	return WebhookPayload{
		Username: "CrisisLens",
		Embeds: []Embed{{
			Title:       rec.Title,
			Description: truncate(rec.Description, maxDescriptionLength),
			Color:       colorFor(rec.SituationType),
			Timestamp:   rec.CreatedAt.UTC().Format(time.RFC3339),
			Fields: []EmbedField{
				{Name: "Location", Value: rec.Location.Name, Inline: true},
				{Name: "Severity", Value: fmt.Sprintf("%.2f", rec.Severity), Inline: true},
				{Name: "Type", Value: string(rec.SituationType), Inline: true},
				{Name: "Responders", Value: fmt.Sprintf("%d matched", len(rec.HandledBy)), Inline: true},
			},
			Footer: &EmbedFooter{Text: "record " + rec.ID},
		}},
	}
}

func colorFor(t types.SituationType) int {
	switch t {
	case types.Disaster:
		return colorDisaster
	case types.Disease:
		return colorDisease
	default:
		return colorOther
	}
}

// truncate caps s at maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

// zapLeveled satisfies retryablehttp.LeveledLogger.
type zapLeveled struct {
	s *zap.SugaredLogger
}

func (l zapLeveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l zapLeveled) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapLeveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapLeveled) Warn(msg string, kv ...interface{}) { l.s.Warnw(msg, kv...) }
