// Package llm wraps an OpenAI-compatible chat completion API for the
// assistant. It is the only place that talks to the model provider; the
// dispatcher and tools depend on the Chatter interface so they can be tested
// with fakes.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/mailmate/mailmate/internal/apierr"
	"github.com/mailmate/mailmate/internal/logging"
)

// Tool describes a callable function offered to the routing model.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any
}

// ToolCall is a structured tool invocation request emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Chatter is the provider interface the assistant depends on.
type Chatter interface {
	// Chat runs a single system+user completion and returns the text.
	Chat(ctx context.Context, system, user string) (string, error)

	// ChatWithTools offers the given tools to the model with the raw user
	// query as the only message. The model answers with either plain text or
	// one or more tool calls.
	ChatWithTools(ctx context.Context, user string, tools []Tool) (string, []ToolCall, error)
}

// Config holds the provider settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
}

// DefaultConfig returns the default provider configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxRetries:  2,
		Timeout:     30 * time.Second,
	}
}

// Client implements Chatter against an OpenAI-compatible endpoint.
type Client struct {
	client *openai.Client
	config *Config
}

// NewClient creates an LLM client. Zero-valued config fields get defaults.
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

// Chat runs a system+user completion.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	var result string
	err := c.doWithRetry(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Messages:    messages,
			Temperature: c.config.Temperature,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", apierr.Upstream("llm", err)
	}

	return result, nil
}

// ChatWithTools offers tools to the model for routing. Temperature is pinned
// to zero so routing stays deterministic.
func (c *Client) ChatWithTools(ctx context.Context, user string, tools []Tool) (string, []ToolCall, error) {
	oaiTools := make([]openai.Tool, len(tools))
	for i, t := range tools {
		oaiTools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}

	var text string
	var calls []ToolCall
	err := c.doWithRetry(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Tools:       oaiTools,
			Temperature: 0,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}

		msg := resp.Choices[0].Message
		text = msg.Content
		calls = calls[:0]
		for _, tc := range msg.ToolCalls {
			calls = append(calls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		return nil
	})
	if err != nil {
		return "", nil, apierr.Upstream("llm", err)
	}

	return text, calls, nil
}

// doWithRetry runs fn with a bounded exponential backoff. This is the only
// retry budget in the system; the dispatcher above never retries.
func (c *Client) doWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying llm call",
				logging.Operation("llm.retry"),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		lastErr = fn(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
