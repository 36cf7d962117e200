package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	cachepkg "github.com/causerie-app/causerie/pkg/cache/sqlite"
	"github.com/causerie-app/causerie/pkg/generator"
	"github.com/causerie-app/causerie/pkg/models"
	"github.com/causerie-app/causerie/pkg/provider"
	"github.com/causerie-app/causerie/pkg/router"
	"github.com/causerie-app/causerie/pkg/speech"
)

type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(context.Context, provider.Request) (string, error) {
	p.calls++
	return p.text, p.err
}

type stubSpeech struct {
	err error
}

func (s stubSpeech) Synthesize(context.Context, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "AAAA", nil
}

func (s stubSpeech) SampleRate() int { return 24000 }

func setupServer(t *testing.T, primary, secondary provider.TextProvider, sp SpeechService) (*Server, *cachepkg.Cache) {
	t.Helper()
	cache, err := cachepkg.New(filepath.Join(t.TempDir(), "cache.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	gen := generator.New(generator.Deps{
		Cache:  cache,
		Router: router.FromProviders(primary, 1, secondary),
		Logger: zerolog.Nop(),
	})
	return New(Options{
		Generator: gen,
		Speech:    sp,
		Cache:     cache,
		Logger:    zerolog.Nop(),
	}), cache
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGrammarCachesResult(t *testing.T) {
	primary := &stubProvider{name: "groq", text: "## Le subjonctif\n\nIl faut que..."}
	srv, cache := setupServer(t, primary, &stubProvider{name: "gemini"}, nil)

	for i := 0; i < 2; i++ {
		rec := do(t, srv, http.MethodPost, "/api/grammar", `{"topic":"Le subjonctif","language":"English"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(resp["explanation"], "## Le subjonctif") {
			t.Errorf("unexpected explanation: %q", resp["explanation"])
		}
	}

	if primary.calls != 1 {
		t.Errorf("expected one provider call, got %d", primary.calls)
	}
	if _, ok := cache.Get(context.Background(), models.StoreGrammar, generator.Key(generator.FeatureGrammar, "Le subjonctif", "English")); !ok {
		t.Error("expected grammar entry in cache")
	}
}

func TestMissingFields(t *testing.T) {
	srv, _ := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)

	tests := map[string]string{
		"/api/grammar":          `{}`,
		"/api/quiz":             `{"topic":"articles"}`,
		"/api/writing":          `{"prompt":"Décrivez votre ville"}`,
		"/api/speaking-example": `{"level":"B1"}`,
		"/api/speech":           `{"text":"  "}`,
	}
	for path, body := range tests {
		rec := do(t, srv, http.MethodPost, path, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	rec := do(t, srv, http.MethodPost, "/api/grammar", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestGenerationFailure(t *testing.T) {
	primary := &stubProvider{name: "groq", err: &provider.ProviderError{Provider: "groq", Status: 500, Body: "boom"}}
	secondary := &stubProvider{name: "gemini", err: &provider.TransportError{Provider: "gemini", Err: errors.New("connection refused")}}
	srv, _ := setupServer(t, primary, secondary, nil)

	rec := do(t, srv, http.MethodPost, "/api/phrases", `{"situation":"au restaurant"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" || !strings.Contains(resp.Details, "gemini") {
		t.Errorf("unexpected error body: %+v", resp)
	}
}

func TestSpeech(t *testing.T) {
	srv, _ := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, stubSpeech{})

	rec := do(t, srv, http.MethodPost, "/api/speech", `{"text":"Bonjour"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp speechResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Audio != "AAAA" || resp.SampleRate != 24000 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSpeechRateLimited(t *testing.T) {
	limited := stubSpeech{err: fmt.Errorf("gemini: %w", speech.ErrRateLimited)}
	srv, _ := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, limited)

	rec := do(t, srv, http.MethodPost, "/api/speech", `{"text":"Bonjour"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var resp models.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error != speech.UserMessage(limited.err) {
		t.Errorf("unexpected message: %q", resp.Error)
	}
}

func TestSpeechNotConfigured(t *testing.T) {
	srv, _ := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)
	rec := do(t, srv, http.MethodPost, "/api/speech", `{"text":"Bonjour"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCacheExportImport(t *testing.T) {
	srv, cache := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)
	ctx := context.Background()
	_ = cache.Put(ctx, models.StoreGrammar, "grammar|Les articles|English", json.RawMessage(`"## Articles"`))

	rec := do(t, srv, http.MethodGet, "/api/cache/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("expected attachment, got %q", cd)
	}
	exported := rec.Body.String()

	if err := cache.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}
	rec = do(t, srv, http.MethodPost, "/api/cache/import", exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := cache.Get(ctx, models.StoreGrammar, "grammar|Les articles|English"); !ok {
		t.Error("expected imported entry")
	}
}

func TestCacheImportRejectsInvalid(t *testing.T) {
	srv, _ := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)

	for _, body := range []string{`[1,2]`, `{"lessons":[{"id":"a","value":1}]}`} {
		rec := do(t, srv, http.MethodPost, "/api/cache/import", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestCacheClearNeedsConfirm(t *testing.T) {
	srv, cache := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)
	ctx := context.Background()
	_ = cache.Put(ctx, models.StoreGrammar, "k", json.RawMessage(`"v"`))

	rec := do(t, srv, http.MethodDelete, "/api/cache", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if _, ok := cache.Get(ctx, models.StoreGrammar, "k"); !ok {
		t.Fatal("unconfirmed clear removed entries")
	}

	rec = do(t, srv, http.MethodDelete, "/api/cache?confirm=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := cache.Get(ctx, models.StoreGrammar, "k"); ok {
		t.Error("expected cache to be empty")
	}
}

func TestCacheStats(t *testing.T) {
	srv, cache := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)
	_ = cache.Put(context.Background(), models.StoreQuizzes, "k", json.RawMessage(`[]`))

	rec := do(t, srv, http.MethodGet, "/api/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats models.CacheStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("expected 1 entry, got %d", stats.Entries)
	}
}

func TestRelayMountedOnlyWhenEnabled(t *testing.T) {
	srv, _ := setupServer(t, &stubProvider{name: "groq"}, &stubProvider{name: "gemini"}, nil)
	if rec := do(t, srv, http.MethodPost, "/api/chat", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without relay, got %d", rec.Code)
	}

	relay := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	withRelay := New(Options{Relay: relay, Logger: zerolog.Nop()})
	if rec := do(t, withRelay, http.MethodPost, "/api/chat", `{}`); rec.Code != http.StatusTeapot {
		t.Errorf("expected relay to handle /api/chat, got %d", rec.Code)
	}
}
