// Package gemini synthesizes speech with a Gemini TTS model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/provider"
	gemtext "github.com/causerie-app/causerie/pkg/provider/gemini"
	"github.com/causerie-app/causerie/pkg/speech"
)

// Synthesizer calls Models.GenerateContent with audio output.
type Synthesizer struct {
	model      string
	voice      string
	sampleRate int
	client     *genai.Client
}

// New creates a Synthesizer using the secondary provider's key.
func New(ctx context.Context, cfg config.SpeechConfig, secondary config.SecondaryConfig) (*Synthesizer, error) {
	s := &Synthesizer{model: cfg.Model, voice: cfg.Voice, sampleRate: cfg.SampleRate}
	if secondary.APIKey == "" {
		return s, nil
	}
	client, err := gemtext.NewGenAI(ctx, secondary.APIKey, secondary.BaseURL, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("create gemini speech client: %w", err)
	}
	s.client = client
	return s, nil
}

func (s *Synthesizer) Name() string    { return "gemini" }
func (s *Synthesizer) SampleRate() int { return s.sampleRate }

// Synthesize implements speech.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.client == nil {
		return nil, &speech.Error{Backend: s.Name(), Err: provider.ErrConfigurationMissing}
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	})
	if err != nil {
		mapped := gemtext.MapError(s.Name(), err)
		if provider.Classify(mapped) == provider.ClassRateLimited {
			return nil, fmt.Errorf("%w: %v", speech.ErrRateLimited, err)
		}
		return nil, &speech.Error{Backend: s.Name(), Err: mapped}
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, &speech.Error{Backend: s.Name(), Err: errors.New("response has no audio")}
}
