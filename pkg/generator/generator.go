// Package generator produces learning content: it serves cached results,
// asks the provider chain for new ones, enforces the JSON contract on what
// comes back and writes successful results through to the cache.
package generator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/models"
	"github.com/causerie-app/causerie/pkg/provider"
	"github.com/causerie-app/causerie/pkg/router"
)

// KeyDelimiter joins the parts of a cache key.
const KeyDelimiter = "|"

var keyEscaper = strings.NewReplacer(`\`, `\\`, KeyDelimiter, `\`+KeyDelimiter)

// Key builds the cache key for a feature and its parameters in declared order.
// Backslashes and delimiters inside a part are escaped so distinct parameter
// lists never share a key.
func Key(feature string, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, keyEscaper.Replace(feature))
	for _, p := range params {
		parts = append(parts, keyEscaper.Replace(p))
	}
	return strings.Join(parts, KeyDelimiter)
}

// Cache is the subset of the response cache the generator uses.
type Cache interface {
	Get(ctx context.Context, store models.Store, id string) (json.RawMessage, bool)
	Put(ctx context.Context, store models.Store, id string, value json.RawMessage) error
}

// Speaker synthesizes base64 audio.
type Speaker interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Recorder stores provider attempts.
type Recorder interface {
	Record(ctx context.Context, rec models.AttemptRecord) error
}

// Deps wires a Generator. Speech and Tracker are optional.
type Deps struct {
	Cache     Cache
	Router    *router.Router
	Speech    Speaker
	Tracker   Recorder
	Learner   config.LearnerConfig
	BaseDelay time.Duration
	Logger    zerolog.Logger
}

// Generator runs the cache → primary → secondary pipeline.
type Generator struct {
	cache     Cache
	router    *router.Router
	speech    Speaker
	tracker   Recorder
	learner   config.LearnerConfig
	baseDelay time.Duration
	log       zerolog.Logger
	flight    singleflight.Group

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Generator.
func New(d Deps) *Generator {
	return &Generator{
		cache:     d.Cache,
		router:    d.Router,
		speech:    d.Speech,
		tracker:   d.Tracker,
		learner:   d.Learner,
		baseDelay: d.BaseDelay,
		log:       d.Logger.With().Str("component", "generator").Logger(),
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseFunc turns raw model text into the canonical JSON stored in the cache.
type parseFunc func(raw string) (json.RawMessage, error)

// job describes one cacheable generation.
type job struct {
	feature string
	store   models.Store
	key     string
	request provider.Request
	parse   parseFunc
	check   func(json.RawMessage) error
}

// cached returns the stored value for j. Entries that no longer satisfy
// the artifact contract are treated as absent and get regenerated.
func (g *Generator) cached(ctx context.Context, j job) (json.RawMessage, bool) {
	if j.store == "" {
		return nil, false
	}
	v, ok := g.cache.Get(ctx, j.store, j.key)
	if !ok {
		return nil, false
	}
	if j.check != nil {
		if err := j.check(v); err != nil {
			g.log.Warn().Err(err).Str("store", string(j.store)).Str("key", j.key).Msg("discarding stale cache entry")
			return nil, false
		}
	}
	return v, true
}

// run serves j from the cache or generates it. Overlapping calls for the
// same key share one generation.
func (g *Generator) run(ctx context.Context, j job) (json.RawMessage, error) {
	if v, ok := g.cached(ctx, j); ok {
		return v, nil
	}
	if j.store == "" {
		return g.generate(ctx, j)
	}

	v, err, _ := g.flight.Do(string(j.store)+"\x00"+j.key, func() (any, error) {
		return g.generate(ctx, j)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// generate asks each route in turn and writes the first success through
// to the cache. Provider calls outlive ctx cancellation so a result that
// arrives after the caller left is still stored.
func (g *Generator) generate(ctx context.Context, j job) (json.RawMessage, error) {
	ctx = context.WithoutCancel(ctx)
	traceID := uuid.NewString()
	log := g.log.With().Str("trace_id", traceID).Str("feature", j.feature).Logger()

	failed := &GenerationFailedError{Feature: j.feature}
	for _, route := range g.router.Resolve() {
		value, state := g.tryRoute(ctx, log, traceID, j, route)
		if state.err == nil {
			if j.store != "" {
				if err := g.cache.Put(ctx, j.store, j.key, value); err != nil {
					log.Warn().Err(err).Msg("cache write failed")
				}
			}
			return value, nil
		}
		failed.Failures = append(failed.Failures, Failure{
			Provider: route.Provider.Name(),
			Class:    state.class,
			Attempts: state.attempt,
			Err:      state.err,
		})
	}

	log.Error().Err(failed).Msg("all providers failed")
	return nil, failed
}

// attemptState is the retry bookkeeping for one provider.
type attemptState struct {
	attempt int
	delay   time.Duration
	class   provider.Class
	err     error
}

// next reports whether another attempt is allowed and sets the wait before it.
func (s *attemptState) next(limit int, base time.Duration) bool {
	if s.err == nil || !s.class.Retryable() || s.attempt >= limit {
		return false
	}
	s.delay = time.Duration(s.attempt) * base
	return true
}

func (g *Generator) tryRoute(ctx context.Context, log zerolog.Logger, traceID string, j job, route router.Route) (json.RawMessage, attemptState) {
	name := route.Provider.Name()
	var state attemptState
	for {
		state.attempt++

		var usage models.Usage
		start := time.Now()
		raw, err := route.Provider.Complete(provider.WithUsage(ctx, &usage), j.request)
		var value json.RawMessage
		if err == nil {
			value, err = j.parse(raw)
		}
		latency := time.Since(start)

		state.err = err
		state.class = provider.Classify(err)
		g.record(ctx, models.AttemptRecord{
			TraceID:   traceID,
			Feature:   j.feature,
			Provider:  name,
			Attempt:   state.attempt,
			Outcome:   outcome(state.class),
			LatencyMs: latency.Milliseconds(),
			Tokens:    usage.TotalTokens,
			CreatedAt: time.Now().UTC(),
		})

		if err == nil {
			log.Info().Str("provider", name).Int("attempt", state.attempt).Dur("latency", latency).Msg("generated")
			return value, state
		}
		log.Warn().Err(err).Str("provider", name).Int("attempt", state.attempt).Str("class", string(state.class)).Msg("provider attempt failed")

		if !state.next(route.MaxAttempts, g.baseDelay) {
			return nil, state
		}
		if err := g.sleep(ctx, state.delay); err != nil {
			return nil, state
		}
	}
}

func outcome(c provider.Class) string {
	if c == provider.ClassNone {
		return "ok"
	}
	return string(c)
}

func (g *Generator) record(ctx context.Context, rec models.AttemptRecord) {
	if g.tracker == nil {
		return
	}
	if err := g.tracker.Record(ctx, rec); err != nil {
		g.log.Warn().Err(err).Msg("tracker record failed")
	}
}

// speak returns audio for text, or "" when speech is unavailable or fails.
func (g *Generator) speak(ctx context.Context, text string) string {
	if g.speech == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	audio, err := g.speech.Synthesize(ctx, text)
	if err != nil {
		g.log.Warn().Err(err).Msg("speech synthesis failed")
		return ""
	}
	return audio
}
