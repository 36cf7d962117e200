// Package polly synthesizes speech with Amazon Polly.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/speech"
)

// SampleRate is the PCM rate requested from Polly.
const SampleRate = 16000

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Synthesizer calls SynthesizeSpeech with PCM output.
type Synthesizer struct {
	mu     sync.Mutex
	client synthClient
	region string
	voice  string
	engine pollytypes.Engine
}

// New creates a Synthesizer. The AWS client is created on first use from
// the default credential chain.
func New(cfg config.SpeechConfig) *Synthesizer {
	return NewWithClient(cfg, nil)
}

// NewWithClient creates a Synthesizer around an existing client.
func NewWithClient(cfg config.SpeechConfig, client synthClient) *Synthesizer {
	voice := cfg.Voice
	if voice == "" || voice == "Kore" {
		voice = "Lea"
	}
	engine := pollytypes.EngineStandard
	if strings.EqualFold(cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	return &Synthesizer{client: client, region: cfg.Region, voice: voice, engine: engine}
}

func (s *Synthesizer) Name() string    { return "polly" }
func (s *Synthesizer) SampleRate() int { return SampleRate }

// Synthesize implements speech.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	client, err := s.resolveClient(ctx)
	if err != nil {
		return nil, &speech.Error{Backend: s.Name(), Err: err}
	}

	out, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       s.engine,
		OutputFormat: pollytypes.OutputFormatPcm,
		SampleRate:   aws.String(strconv.Itoa(SampleRate)),
		Text:         aws.String(text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(s.voice),
	})
	if err != nil {
		return nil, normalizeError(err)
	}
	if out == nil || out.AudioStream == nil {
		return nil, &speech.Error{Backend: s.Name(), Err: errors.New("empty audio stream")}
	}
	defer out.AudioStream.Close()

	pcm, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, &speech.Error{Backend: s.Name(), Err: fmt.Errorf("read audio: %w", err)}
	}
	return pcm, nil
}

func normalizeError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "TooManyRequestsException" {
		return fmt.Errorf("%w: %s", speech.ErrRateLimited, apiErr.ErrorMessage())
	}
	return &speech.Error{Backend: "polly", Err: err}
}

func (s *Synthesizer) resolveClient(ctx context.Context) (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}
