package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/speech"
)

func newTestSynth(t *testing.T, handler http.HandlerFunc) *Synthesizer {
	t.Helper()
	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.Speech.Timeout = 5 * time.Second
	cfg.Secondary.APIKey = "gem-test"
	cfg.Secondary.BaseURL = upstream.URL + "/"

	s, err := New(context.Background(), cfg.Speech, cfg.Secondary)
	require.NoError(t, err)
	return s
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{0x00, 0x01, 0x02, 0x03}
	var body map[string]any
	s := newTestSynth(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"inlineData":{"mimeType":"audio/L16;codec=pcm;rate=24000","data":"` +
			base64.StdEncoding.EncodeToString(pcm) + `"}}]}}]}`))
	})

	got, err := s.Synthesize(context.Background(), "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, pcm, got)
	assert.Equal(t, 24000, s.SampleRate())

	gen, _ := body["generationConfig"].(map[string]any)
	assert.Equal(t, []any{"AUDIO"}, gen["responseModalities"])
}

func TestSynthesizeRateLimited(t *testing.T) {
	s := newTestSynth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := s.Synthesize(context.Background(), "Bonjour")
	assert.ErrorIs(t, err, speech.ErrRateLimited)
}

func TestSynthesizeNoAudio(t *testing.T) {
	s := newTestSynth(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"sorry"}]}}]}`))
	})

	_, err := s.Synthesize(context.Background(), "Bonjour")
	var serr *speech.Error
	assert.ErrorAs(t, err, &serr)
}

func TestSynthesizeWithoutKey(t *testing.T) {
	cfg := config.Default()
	s, err := New(context.Background(), cfg.Speech, cfg.Secondary)
	require.NoError(t, err)

	_, err = s.Synthesize(context.Background(), "Bonjour")
	var serr *speech.Error
	assert.ErrorAs(t, err, &serr)
}
