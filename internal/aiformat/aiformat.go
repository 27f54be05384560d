// Package aiformat asks a chat completion model to derive formatting rules
// and reformat a document, and decodes the JSON it returns.
package aiformat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/wordfmt/internal/prompts"
	"github.com/jackzampolin/wordfmt/internal/providers"
	"github.com/jackzampolin/wordfmt/internal/rules"
)

const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 16000
)

// Output is the decoded model response.
type Output struct {
	FormattingRules  rules.Rules     `json:"formattingRules"`
	TableOfContents  json.RawMessage `json:"tableOfContents,omitempty"`
	FormattedContent string          `json:"formattedContent"`
	Summary          string          `json:"summary"`

	// Call metadata, not part of the model's answer.
	Model    string        `json:"-"`
	Tokens   int           `json:"-"`
	Duration time.Duration `json:"-"`
}

// wireOutput tolerates non-string summaries.
type wireOutput struct {
	FormattingRules  rules.Rules     `json:"formattingRules"`
	TableOfContents  json.RawMessage `json:"tableOfContents"`
	FormattedContent string          `json:"formattedContent"`
	Summary          rules.Value     `json:"summary"`
}

// Config configures a Client.
type Config struct {
	LLM         providers.LLMClient
	Model       string  // Provider default when empty
	Temperature float64 // Zero selects DefaultTemperature
	MaxTokens   int     // Zero selects DefaultMaxTokens
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Client performs formatting calls. It never retries.
type Client struct {
	llm         providers.LLMClient
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	validator   *providers.Validator
	logger      *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.LLM == nil {
		return nil, errors.New("aiformat: LLM client is required")
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	schema, err := json.Marshal(rules.ResponseSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response schema: %w", err)
	}
	validator, err := providers.NewValidator(schema)
	if err != nil {
		return nil, err
	}

	return &Client{
		llm:         cfg.LLM,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		validator:   validator,
		logger:      cfg.Logger,
	}, nil
}

// Completion is a raw model reply with its call metadata.
type Completion struct {
	Content          string
	Provider         string
	Model            string
	RequestID        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
	Duration         time.Duration
}

// Format sends prompt as the user message and decodes the reply.
// Failures are *ServiceError or *ParseError.
func (c *Client) Format(ctx context.Context, prompt string) (*Output, error) {
	completion, err := c.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return c.Decode(completion)
}

// Complete performs the single chat call. Failures are *ServiceError.
func (c *Client) Complete(ctx context.Context, prompt string) (*Completion, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.llm.Chat(ctx, &providers.ChatRequest{
		Model: c.model,
		Messages: []providers.Message{
			{Role: "system", Content: prompts.SystemPrompt()},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		var statusErr *providers.StatusError
		if errors.As(err, &statusErr) {
			c.logger.Error("AI API error", "provider", c.llm.Name(), "status", statusErr.StatusCode, "body", statusErr.Body)
			return nil, &ServiceError{StatusCode: statusErr.StatusCode, Body: statusErr.Body, Err: err}
		}
		return nil, &ServiceError{Err: err}
	}
	if strings.TrimSpace(result.Content) == "" {
		return nil, &ServiceError{Err: ErrEmptyCompletion}
	}

	c.logger.Debug("AI response received",
		"provider", result.Provider, "model", result.ModelUsed, "tokens", result.TotalTokens)

	return &Completion{
		Content:          result.Content,
		Provider:         result.Provider,
		Model:            result.ModelUsed,
		RequestID:        result.RequestID,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		CostUSD:          result.CostUSD,
		Duration:         result.ExecutionTime,
	}, nil
}

// Decode parses a completion into an Output. Failures are *ParseError.
func (c *Client) Decode(completion *Completion) (*Output, error) {
	out, err := c.decode(completion.Content)
	if err != nil {
		return nil, err
	}
	out.Model = completion.Model
	out.Tokens = completion.TotalTokens
	out.Duration = completion.Duration
	return out, nil
}

// Provider returns the name of the underlying LLM client.
func (c *Client) Provider() string {
	return c.llm.Name()
}

// decode strips fences, parses, and checks the envelope shape.
func (c *Client) decode(content string) (*Output, error) {
	cleaned := providers.StripCodeFences(content)

	fail := func(err error) (*Output, error) {
		snip := snippet(cleaned)
		c.logger.Error("failed to parse AI response", "snippet", snip, "error", err)
		return nil, &ParseError{Snippet: snip, Err: err}
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return fail(err)
	}
	if err := c.validator.Validate(doc); err != nil {
		return fail(err)
	}

	var wire wireOutput
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return fail(err)
	}

	out := &Output{
		FormattingRules:  wire.FormattingRules,
		FormattedContent: wire.FormattedContent,
		Summary:          wire.Summary.String(),
	}
	if toc := bytes.TrimSpace(wire.TableOfContents); len(toc) > 0 && !bytes.Equal(toc, []byte("null")) {
		out.TableOfContents = toc
	}
	return out, nil
}
