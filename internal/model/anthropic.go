// ABOUTME: Anthropic Messages API completer using anthropic-sdk-go
// ABOUTME: System turns become the system prompt; consecutive same-role turns are merged

package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/2389/barista-gateway/internal/config"
	"github.com/2389/barista-gateway/internal/conversation"
)

// Anthropic completes conversations with the Messages API.
type Anthropic struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
	timeout     time.Duration
	logger      *slog.Logger
}

// NewAnthropic creates an Anthropic completer. An empty API key falls back
// to the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(cfg config.ModelConfig, logger *slog.Logger) *Anthropic {
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

	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Name,
		temperature: cfg.EffectiveTemperature(),
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

// Complete asks the model for the next assistant turn.
func (a *Anthropic) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	system, dialogue := splitTurns(turns)
	if len(dialogue) == 0 {
		return "", fmt.Errorf("anthropic: conversation has no user turn")
	}

	messages := make([]anthropic.MessageParam, 0, len(dialogue))
	for _, t := range dialogue {
		block := anthropic.NewTextBlock(t.Text)
		if t.Role == conversation.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		Messages:    messages,
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	start := time.Now()
	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	a.logger.Debug("completion finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"stop_reason", resp.StopReason,
		"turns", len(turns),
	)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// splitTurns separates system text from the dialogue. The Messages API needs
// the dialogue to start with a user turn and alternate roles, so leading
// assistant turns are dropped and consecutive same-role turns are joined.
func splitTurns(turns []conversation.Turn) (string, []conversation.Turn) {
	var system []string
	var dialogue []conversation.Turn

	for _, t := range turns {
		if t.Role == conversation.RoleSystem {
			system = append(system, t.Text)
			continue
		}
		role := t.Role
		if role != conversation.RoleAssistant {
			role = conversation.RoleUser
		}
		if len(dialogue) == 0 && role == conversation.RoleAssistant {
			continue
		}
		if n := len(dialogue); n > 0 && dialogue[n-1].Role == role {
			dialogue[n-1].Text += "\n\n" + t.Text
			continue
		}
		dialogue = append(dialogue, conversation.Turn{Role: role, Text: t.Text})
	}

	return strings.Join(system, "\n\n"), dialogue
}
