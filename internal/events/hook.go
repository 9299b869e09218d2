// ABOUTME: Ready side-effect HTTP client posting {event:"ready", ts} to a configured URL
// ABOUTME: Best effort: callers run it detached and only log failures

package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ReadyHook notifies an external collaborator that a user is ready.
type ReadyHook struct {
	url    string
	client *http.Client
}

// NewReadyHook creates a hook for url. An empty url disables the hook.
func NewReadyHook(url string, timeout time.Duration) *ReadyHook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReadyHook{url: url, client: &http.Client{Timeout: timeout}}
}

// Enabled reports whether a URL is configured.
func (h *ReadyHook) Enabled() bool {
	return h != nil && h.url != ""
}

// Notify posts the ready notice. It returns the response status code.
func (h *ReadyHook) Notify(ctx context.Context, at time.Time) (int, error) {
	body, err := json.Marshal(ReadyNotice{Event: "ready", TS: at.Unix()})
	if err != nil {
		return 0, fmt.Errorf("encoding ready notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating ready request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("posting ready notice: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("ready hook returned %s", resp.Status)
	}
	return resp.StatusCode, nil
}
