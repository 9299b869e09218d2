// ABOUTME: OpenAI chat-completions completer using openai-go
// ABOUTME: Sends the whole bounded history, system turn included

package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/2389/barista-gateway/internal/config"
	"github.com/2389/barista-gateway/internal/conversation"
)

// OpenAI completes conversations with the Chat Completions API.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
	logger      *slog.Logger
}

// NewOpenAI creates an OpenAI completer. An empty API key falls back to the
// OPENAI_API_KEY environment variable.
func NewOpenAI(cfg config.ModelConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       cfg.Name,
		temperature: cfg.EffectiveTemperature(),
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Complete asks the model for the next assistant turn.
func (o *OpenAI) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	ctx, cancel := withTimeout(ctx, o.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            openAIMessages(turns),
		Temperature:         openai.Float(o.temperature),
		MaxCompletionTokens: openai.Int(o.maxTokens),
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	o.logger.Debug("completion finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"finish_reason", resp.Choices[0].FinishReason,
		"turns", len(turns),
	)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func openAIMessages(turns []conversation.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Text))
		case conversation.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Text))
		default:
			messages = append(messages, openai.UserMessage(t.Text))
		}
	}
	return messages
}
