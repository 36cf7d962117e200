package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	cachepkg "github.com/causerie-app/causerie/pkg/cache/sqlite"
	"github.com/causerie-app/causerie/pkg/generator"
	"github.com/causerie-app/causerie/pkg/models"
)

// SpeechService synthesizes base64 PCM at a fixed sample rate.
type SpeechService interface {
	Synthesize(ctx context.Context, text string) (string, error)
	SampleRate() int
}

// Options wires a Server. Relay may be nil to disable /api/chat.
type Options struct {
	Listen          string
	Generator       *generator.Generator
	Speech          SpeechService
	Cache           *cachepkg.Cache
	Relay           http.Handler
	DefaultLanguage string
	Logger          zerolog.Logger
}

// Server is the causerie JSON API.
type Server struct {
	listen   string
	gen      *generator.Generator
	speech   SpeechService
	cache    *cachepkg.Cache
	language string
	log      zerolog.Logger
	router   *chi.Mux
	handler  http.Handler
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	s := &Server{
		listen:   opts.Listen,
		gen:      opts.Generator,
		speech:   opts.Speech,
		cache:    opts.Cache,
		language: opts.DefaultLanguage,
		log:      opts.Logger,
		router:   chi.NewRouter(),
	}
	if s.language == "" {
		s.language = "English"
	}

	r := s.router
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/grammar", s.handleGrammar)
		r.Post("/conjugation", s.handleConjugation)
		r.Post("/quiz", s.handleQuiz)
		r.Post("/flashcards", s.handleFlashcards)
		r.Post("/phrases", s.handlePhrases)
		r.Post("/exam", s.handleExam)
		r.Post("/writing", s.handleWriting)
		r.Post("/speaking-example", s.handleSpeakingExample)
		r.Post("/speech", s.handleSpeech)

		r.Get("/cache/export", s.handleExport)
		r.Post("/cache/import", s.handleImport)
		r.Delete("/cache", s.handleClear)
		r.Get("/cache/stats", s.handleStats)

		if opts.Relay != nil {
			r.Handle("/chat", opts.Relay)
		}
	})

	s.handler = hlog.NewHandler(s.log)(
		hlog.RequestIDHandler("req_id", "X-Request-Id")(
			hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("size", size).
					Dur("duration", d).
					Msg("request")
			})(r)))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.listen).Msg("causerie listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message, details string) {
	writeJSON(w, code, models.ErrorResponse{Error: message, Details: details})
}
