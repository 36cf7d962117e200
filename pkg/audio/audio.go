// Package audio plays base64 PCM speech through the system output.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// ErrUnavailable is returned when no audio output can be opened.
var ErrUnavailable = errors.New("audio output not available")

// State is the lifecycle of the engine's output context.
type State int

const (
	Uninitialized State = iota
	Suspended
	Running
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Suspended:
		return "suspended"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Buffer is decoded audio, one sample slice per channel, values in [-1, 1).
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames is the number of samples per channel.
func (b *Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Decode turns base64 16-bit little-endian interleaved PCM into a Buffer.
func Decode(b64 string, sampleRate, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(raw)%(2*channels) != 0 {
		return nil, fmt.Errorf("pcm length %d is not a whole number of %d-channel frames", len(raw), channels)
	}

	frames := len(raw) / (2 * channels)
	buf := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			sample := int16(binary.LittleEndian.Uint16(raw[off:]))
			buf.Channels[c][i] = float32(sample) / 32768
		}
	}
	return buf, nil
}

// interleave encodes b as float32 little-endian interleaved frames.
func interleave(b *Buffer) []byte {
	channels := len(b.Channels)
	out := make([]byte, 0, b.Frames()*channels*4)
	var scratch [4]byte
	for i := 0; i < b.Frames(); i++ {
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(b.Channels[c][i]))
			out = append(out, scratch[:]...)
		}
	}
	return out
}

// Output is an opened audio device accepting float32 LE interleaved frames.
type Output interface {
	Resume() error
	Suspend() error
	Play(pcm io.Reader) error
}

// OutputFactory opens an Output for the given format.
type OutputFactory func(sampleRate, channels int) (Output, error)

// Engine owns the lazily created output and plays buffers one shot at a time.
type Engine struct {
	mu         sync.Mutex
	state      State
	open       OutputFactory
	out        Output
	sampleRate int
	channels   int
	log        zerolog.Logger
}

// NewEngine creates an Engine that opens its output with open on first use.
func NewEngine(open OutputFactory, sampleRate, channels int, logger zerolog.Logger) *Engine {
	return &Engine{
		open:       open,
		sampleRate: sampleRate,
		channels:   channels,
		log:        logger.With().Str("component", "audio").Logger(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Resume creates the output if needed and makes sure it is running.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumeLocked()
}

func (e *Engine) resumeLocked() error {
	if e.state == Uninitialized {
		out, err := e.open(e.sampleRate, e.channels)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		e.out = out
		e.state = Suspended
	}
	if e.state == Suspended {
		if err := e.out.Resume(); err != nil {
			return fmt.Errorf("resume output: %w", err)
		}
		e.state = Running
	}
	return nil
}

// Suspend pauses a running output.
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Running {
		return nil
	}
	if err := e.out.Suspend(); err != nil {
		return fmt.Errorf("suspend output: %w", err)
	}
	e.state = Suspended
	return nil
}

// Play starts buf on a new one-shot player. Playback is not queued; buffers
// started close together overlap.
func (e *Engine) Play(buf *Buffer) error {
	if buf.SampleRate != e.sampleRate || len(buf.Channels) != e.channels {
		return fmt.Errorf("buffer format %d Hz x%d does not match output %d Hz x%d",
			buf.SampleRate, len(buf.Channels), e.sampleRate, e.channels)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.resumeLocked(); err != nil {
		return err
	}
	return e.out.Play(bytes.NewReader(interleave(buf)))
}

// PlayBase64 decodes and plays b64. Failures are logged, never returned.
func (e *Engine) PlayBase64(b64 string) {
	buf, err := Decode(b64, e.sampleRate, e.channels)
	if err != nil {
		e.log.Error().Err(err).Msg("audio decode failed")
		return
	}
	if err := e.Play(buf); err != nil {
		e.log.Error().Err(err).Msg("audio playback failed")
		return
	}
	e.log.Debug().Int("frames", buf.Frames()).Msg("playing")
}
