package gpt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/fedutinova/speechcoach/internal/narrative"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

// minTemperature stands in for zero, which the request encoder omits and
// the API then treats as its own default.
const minTemperature = math.SmallestNonzeroFloat32

type Config struct {
	APIKey string
	// BaseURL overrides the OpenAI endpoint, e.g. for a compatible proxy.
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client is the OpenAI backed narrative capability.
type Client struct {
	openAI      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

var _ narrative.Capability = (*Client)(nil)

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	temperature := float32(cfg.Temperature)
	if temperature <= 0 {
		slog.Warn("OpenAI temperature must be positive, using the smallest positive value",
			"configured", cfg.Temperature)
		temperature = minTemperature
	}

	return &Client{
		openAI:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *Client) Generate(ctx context.Context, req narrative.Request) (narrative.Generation, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	slog.Debug("sending request to OpenAI",
		"model", c.model,
		"prompt_length", len(req.Prompt))

	resp, err := c.openAI.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		slog.Error("OpenAI API error", "error", err, "model", c.model)
		return narrative.Generation{}, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return narrative.Generation{}, errors.New("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content
	preview := content
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	slog.Info("received response from OpenAI",
		"model", resp.Model,
		"tokens_used", resp.Usage.TotalTokens,
		"response_length", len(content),
		"response_preview", preview,
		"processing_time_ms", time.Since(start).Milliseconds())

	model := resp.Model
	if model == "" {
		model = c.model
	}
	return narrative.Generation{
		Text:  content,
		Model: model,
		Usage: narrative.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
