package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	cachepkg "github.com/causerie-app/causerie/pkg/cache/sqlite"
	"github.com/causerie-app/causerie/pkg/generator"
	"github.com/causerie-app/causerie/pkg/speech"
)

const maxRequestBytes = 1 << 20

type grammarRequest struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

type conjugationRequest struct {
	Verb     string `json:"verb"`
	Language string `json:"language"`
}

type quizRequest struct {
	Topic    string `json:"topic"`
	Level    string `json:"level"`
	Language string `json:"language"`
}

type flashcardsRequest struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

type phrasesRequest struct {
	Situation string `json:"situation"`
	Language  string `json:"language"`
}

type examRequest struct {
	Level    string `json:"level"`
	Language string `json:"language"`
}

type writingRequest struct {
	Prompt   string `json:"prompt"`
	Essay    string `json:"essay"`
	Language string `json:"language"`
}

type speakingRequest struct {
	Prompt string `json:"prompt"`
	Level  string `json:"level"`
}

type speechRequest struct {
	Text string `json:"text"`
}

type speechResponse struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sampleRate"`
}

func (s *Server) lang(l string) string {
	if strings.TrimSpace(l) == "" {
		return s.language
	}
	return l
}

// respond writes v, or maps err onto an HTTP error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}

	var failed *generator.GenerationFailedError
	if errors.As(err, &failed) {
		hlog.FromRequest(r).Warn().Err(err).Msg("generation failed")
		writeJSONError(w, http.StatusBadGateway, "content could not be generated, please try again", err.Error())
		return
	}
	hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	writeJSONError(w, http.StatusInternalServerError, "internal error", err.Error())
}

func (s *Server) handleGrammar(w http.ResponseWriter, r *http.Request) {
	var req grammarRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"topic": req.Topic} }) {
		return
	}
	text, err := s.gen.GrammarExplanation(r.Context(), req.Topic, s.lang(req.Language))
	s.respond(w, r, map[string]string{"explanation": string(text)}, err)
}

func (s *Server) handleConjugation(w http.ResponseWriter, r *http.Request) {
	var req conjugationRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"verb": req.Verb} }) {
		return
	}
	v, err := s.gen.Conjugation(r.Context(), req.Verb, s.lang(req.Language))
	s.respond(w, r, v, err)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"topic": req.Topic, "level": req.Level} }) {
		return
	}
	v, err := s.gen.Quiz(r.Context(), req.Topic, req.Level, s.lang(req.Language))
	s.respond(w, r, v, err)
}

func (s *Server) handleFlashcards(w http.ResponseWriter, r *http.Request) {
	var req flashcardsRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"theme": req.Theme} }) {
		return
	}
	v, err := s.gen.Flashcards(r.Context(), req.Theme, s.lang(req.Language))
	s.respond(w, r, v, err)
}

func (s *Server) handlePhrases(w http.ResponseWriter, r *http.Request) {
	var req phrasesRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"situation": req.Situation} }) {
		return
	}
	v, err := s.gen.Phrases(r.Context(), req.Situation, s.lang(req.Language))
	s.respond(w, r, v, err)
}

func (s *Server) handleExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"level": req.Level} }) {
		return
	}
	v, err := s.gen.Exam(r.Context(), req.Level, s.lang(req.Language))
	s.respond(w, r, v, err)
}

func (s *Server) handleWriting(w http.ResponseWriter, r *http.Request) {
	var req writingRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"prompt": req.Prompt, "essay": req.Essay} }) {
		return
	}
	v, err := s.gen.WritingFeedback(r.Context(), req.Prompt, req.Essay, s.lang(req.Language))
	s.respond(w, r, v, err)
}

func (s *Server) handleSpeakingExample(w http.ResponseWriter, r *http.Request) {
	var req speakingRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"prompt": req.Prompt, "level": req.Level} }) {
		return
	}
	v, err := s.gen.SpeakingExample(r.Context(), req.Prompt, req.Level)
	s.respond(w, r, v, err)
}

// decodeInto decodes the body into v, then checks that every field returned
// by fields is set.
func decodeInto(w http.ResponseWriter, r *http.Request, v any, fields func() map[string]string) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	var missing []string
	for name, value := range fields() {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		writeJSONError(w, http.StatusBadRequest, "missing required fields", strings.Join(missing, ", "))
		return false
	}
	return true
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if !decodeInto(w, r, &req, func() map[string]string { return map[string]string{"text": req.Text} }) {
		return
	}
	if s.speech == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "speech synthesis is not configured", "")
		return
	}

	audio, err := s.speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("speech failed")
		code := http.StatusBadGateway
		if errors.Is(err, speech.ErrRateLimited) {
			code = http.StatusTooManyRequests
		}
		writeJSONError(w, code, speech.UserMessage(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, speechResponse{Audio: audio, SampleRate: s.speech.SampleRate()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.cache.ExportAll(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("export failed")
		writeJSONError(w, http.StatusInternalServerError, "export failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="causerie-cache-%s.json"`, time.Now().Format("20060102")))
	if err := cachepkg.WriteSnapshot(w, snap); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("export write failed")
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	snap, err := cachepkg.ReadSnapshot(http.MaxBytesReader(w, r.Body, 256<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid cache file", err.Error())
		return
	}
	if err := s.cache.ImportAll(r.Context(), snap); err != nil {
		if errors.Is(err, cachepkg.ErrInvalidSnapshot) {
			writeJSONError(w, http.StatusBadRequest, "invalid cache file", err.Error())
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("import failed")
		writeJSONError(w, http.StatusInternalServerError, "import failed", err.Error())
		return
	}

	imported := 0
	for _, entries := range snap {
		imported += len(entries)
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeJSONError(w, http.StatusBadRequest, "clearing the cache requires confirm=true", "")
		return
	}
	if err := s.cache.ClearAll(r.Context()); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("clear failed")
		writeJSONError(w, http.StatusInternalServerError, "clear failed", err.Error())
		return
	}
	hlog.FromRequest(r).Info().Msg("cache cleared")
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "stats failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
