// Package reasoning wraps the external reasoning service the refiner, the
// reconciler and the scoring engine share. Every call carries a fixed JSON
// schema; responses are validated against it before they reach callers.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-crisislens/apperr"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/time/rate"
)

// Request is one schema-constrained completion.
type Request struct {
	System     string
	Prompt     string
	SchemaName string
	Schema     jsonschema.Definition
}

// Reasoner is the capability every reasoning-backed component depends on.
// Implementations return the raw JSON text of the response.
type Reasoner interface {
	Reason(ctx context.Context, req Request) (string, error)
}

// OpenAIClient implements Reasoner with chat completions and structured output.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewOpenAIClient creates a client whose calls are bounded by timeout and
// shared across the process by a ratePerSecond limiter.
func NewOpenAIClient(apiKey, model string, timeout time.Duration, ratePerSecond float64) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), model, timeout, ratePerSecond)
}

// NewOpenAIClientWithConfig is NewOpenAIClient with a caller-supplied client config.
func NewOpenAIClientWithConfig(cfg openai.ClientConfig, model string, timeout time.Duration, ratePerSecond float64) *OpenAIClient {
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (c *OpenAIClient) Reason(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	schema := req.Schema
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: req.System,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: req.Prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   req.SchemaName,
					Schema: &schema,
					Strict: true,
				},
			},
			Temperature: 0.2,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai chat completion error: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai returned empty response or choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Decode validates content against schema and unmarshals it into v.
// Failures come back as *apperr.ValidationError tagged with adapter.
func Decode(adapter string, schema jsonschema.Definition, content string, v any) error {
	content = stripFences(content)
	if content == "" {
		return &apperr.ValidationError{Adapter: adapter, Err: errors.New("empty response")}
	}
	if err := jsonschema.VerifySchemaAndUnmarshal(schema, []byte(content), v); err != nil {
		return &apperr.ValidationError{Adapter: adapter, Err: err}
	}
	return nil
}

// stripFences drops a ```json ... ``` wrapper some models emit even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
