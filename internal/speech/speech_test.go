// ABOUTME: Tests for language detection, markdown stripping and the HTTP synthesizer
// ABOUTME: Uses httptest for the synthesis service

package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		chinese int
		total   int
	}{
		{"empty", "", LangUnknown, 0, 0},
		{"only spaces", "   ", LangUnknown, 0, 0},
		{"english", "hello there", LangEnglish, 0, 10},
		{"chinese", "你好世界", LangChinese, 4, 4},
		{"mixed mostly chinese", "我要咖啡 coffee", LangChinese, 4, 10},
		{"mixed mostly english", "one americano 謝謝", LangEnglish, 2, 14},
		{"exactly thirty percent is english", "中中中aaaaaaa", LangEnglish, 3, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DetectLanguage(tt.text)
			assert.Equal(t, tt.want, d.Language)
			assert.Equal(t, tt.chinese, d.ChineseChars)
			assert.Equal(t, tt.total, d.TotalChars)
		})
	}
}

func TestTTSCode(t *testing.T) {
	assert.Equal(t, "zh-TW", TTSCode(LangChinese))
	assert.Equal(t, "en", TTSCode(LangEnglish))
	assert.Equal(t, "en", TTSCode(LangUnknown))
}

func TestContainsIdeograph(t *testing.T) {
	assert.True(t, ContainsIdeograph("ready 準備"))
	assert.False(t, ContainsIdeograph("ready"))
	assert.False(t, ContainsIdeograph(""))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Hello there!", "Hello there!"},
		{"emphasis", "I am **Xiao Ka**, _nice_ to meet you", "I am Xiao Ka, nice to meet you"},
		{"heading and paragraph", "# Menu\n\nWe have coffee.", "Menu We have coffee."},
		{"list", "- americano\n- latte", "americano latte"},
		{"link keeps label", "see [our menu](https://example.com/menu)", "see our menu"},
		{"code block dropped", "Try this:\n\n```\nrm -rf /\n```\n\nDone.", "Try this: Done."},
		{"soft breaks", "first line\nsecond line", "first line second line"},
		{"inline code kept", "say `hello`", "say hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestHTTPSynthesizer(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(srv.URL, time.Second)
	audio, err := s.Synthesize(context.Background(), "hello", "en")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
	assert.Equal(t, synthesizeRequest{Text: "hello", Lang: "en"}, got)
}

func TestHTTPSynthesizer_Errors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	_, err := NewHTTPSynthesizer(failing.URL, time.Second).Synthesize(context.Background(), "hi", "en")
	assert.ErrorContains(t, err, "status 500")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()

	_, err = NewHTTPSynthesizer(empty.URL, time.Second).Synthesize(context.Background(), "hi", "en")
	assert.ErrorContains(t, err, "no audio")
}

type recordingSynth struct {
	text, lang string
}

func (r *recordingSynth) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	r.text, r.lang = text, lang
	return []byte("audio"), nil
}

func TestSpeak(t *testing.T) {
	rec := &recordingSynth{}
	audio, err := Speak(context.Background(), rec, "**你好**，歡迎光臨")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), audio)
	assert.Equal(t, "你好，歡迎光臨", rec.text)
	assert.Equal(t, "zh-TW", rec.lang)

	rec = &recordingSynth{}
	audio, err = Speak(context.Background(), rec, "   ")
	require.NoError(t, err)
	assert.Nil(t, audio)
	assert.Empty(t, rec.text)
}
