// ABOUTME: Language-model completer interface and provider selection
// ABOUTME: Turns a conversation snapshot into one assistant reply

package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/barista-gateway/internal/config"
	"github.com/2389/barista-gateway/internal/conversation"
)

// ErrEmptyResponse is returned when the provider answers with no text.
var ErrEmptyResponse = errors.New("model returned no text")

// Completer produces the assistant's next turn for a conversation.
// Implementations are called from worker-pool goroutines.
type Completer interface {
	Complete(ctx context.Context, turns []conversation.Turn) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, turns []conversation.Turn) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	return f(ctx, turns)
}

// New builds the completer for the configured provider.
func New(cfg config.ModelConfig, logger *slog.Logger) (Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "model", "provider", cfg.Provider, "model", cfg.Name)

	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg, logger), nil
	case "anthropic":
		return NewAnthropic(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

// withTimeout bounds a completion when a timeout is configured.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
