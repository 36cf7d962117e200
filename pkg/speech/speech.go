// Package speech turns text into base64 PCM audio, memoizing every
// synthesis in the response cache.
package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/causerie-app/causerie/pkg/models"
)

// ErrRateLimited is returned when the speech backend rejects a call for quota reasons.
var ErrRateLimited = errors.New("speech synthesis rate limited")

// Error is any other synthesis failure.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s speech: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage maps a synthesis error to text suitable for display.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return "Audio generation is busy right now. Please wait a minute and try again."
	default:
		return "Audio could not be generated. Please try again later."
	}
}

// Synthesizer produces raw 16-bit little-endian mono PCM for text.
type Synthesizer interface {
	Name() string
	SampleRate() int
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Cache is the subset of the response cache used for memoization.
type Cache interface {
	Get(ctx context.Context, store models.Store, id string) (json.RawMessage, bool)
	Put(ctx context.Context, store models.Store, id string, value json.RawMessage) error
}

// Client memoizes a Synthesizer behind the cache and a request limiter.
type Client struct {
	synth   Synthesizer
	cache   Cache
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New creates a Client. requestsPerMinute <= 0 disables limiting.
func New(synth Synthesizer, cache Cache, requestsPerMinute int, logger zerolog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return &Client{
		synth:   synth,
		cache:   cache,
		limiter: limiter,
		log:     logger.With().Str("component", "speech").Str("backend", synth.Name()).Logger(),
	}
}

// SampleRate is the rate of the PCM this client returns.
func (c *Client) SampleRate() int { return c.synth.SampleRate() }

// clip is the cached form of one synthesis. The rate is kept with the audio
// so a backend switch never replays samples at the wrong speed.
type clip struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sampleRate"`
}

// Synthesize returns base64 PCM audio for text. The cache is keyed by text
// exactly as given.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &Error{Backend: c.synth.Name(), Err: errors.New("empty text")}
	}

	sampleRate := c.synth.SampleRate()
	if raw, ok := c.cache.Get(ctx, models.StoreSpeech, text); ok {
		var cached clip
		switch err := json.Unmarshal(raw, &cached); {
		case err != nil || cached.Audio == "":
			c.log.Warn().Msg("ignoring undecodable cached audio")
		case cached.SampleRate != sampleRate:
			c.log.Debug().Int("cached_rate", cached.SampleRate).Int("rate", sampleRate).Msg("cached audio has a different sample rate")
		default:
			return cached.Audio, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &Error{Backend: c.synth.Name(), Err: err}
	}

	start := time.Now()
	pcm, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		c.log.Warn().Err(err).Dur("latency", time.Since(start)).Msg("synthesis failed")
		if errors.Is(err, ErrRateLimited) {
			return "", err
		}
		var serr *Error
		if errors.As(err, &serr) {
			return "", err
		}
		return "", &Error{Backend: c.synth.Name(), Err: err}
	}
	if len(pcm) == 0 {
		return "", &Error{Backend: c.synth.Name(), Err: errors.New("empty audio")}
	}

	audio := base64.StdEncoding.EncodeToString(pcm)
	c.log.Debug().Int("bytes", len(pcm)).Dur("latency", time.Since(start)).Msg("synthesized")

	value, _ := json.Marshal(clip{Audio: audio, SampleRate: sampleRate})
	if err := c.cache.Put(ctx, models.StoreSpeech, text, value); err != nil {
		c.log.Warn().Err(err).Msg("speech cache write failed")
	}
	return audio, nil
}
