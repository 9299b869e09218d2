// ABOUTME: Synthesizer interface and an HTTP adapter for an external TTS service
// ABOUTME: Posts {text, lang} and returns the response body as audio bytes

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxAudioBytes caps the audio read from the synthesis service.
const maxAudioBytes = 16 << 20

// Synthesizer converts text to audio. lang is a TTSCode value.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// HTTPSynthesizer calls a synthesis service over HTTP.
type HTTPSynthesizer struct {
	url    string
	client *http.Client
}

// NewHTTPSynthesizer creates a synthesizer posting to url.
func NewHTTPSynthesizer(url string, timeout time.Duration) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type synthesizeRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Synthesize posts the text and returns the audio payload.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, Lang: lang})
	if err != nil {
		return nil, fmt.Errorf("encoding speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("speech service returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("reading speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speech service returned no audio")
	}
	return audio, nil
}

// Speak prepares text for synthesis and calls s. Empty text yields no audio
// and no error.
func Speak(ctx context.Context, s Synthesizer, text string) ([]byte, error) {
	plain := PlainText(text)
	if plain == "" {
		return nil, nil
	}
	return s.Synthesize(ctx, plain, TTSCode(DetectLanguage(plain).Language))
}
