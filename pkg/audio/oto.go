//go:build !nocgo

package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

type otoOutput struct {
	ctx *oto.Context
}

// NewOtoOutput opens the system audio device through oto.
func NewOtoOutput(sampleRate, channels int) (Output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("%w: context initialization timeout", ErrUnavailable)
	}
	return &otoOutput{ctx: ctx}, nil
}

func (o *otoOutput) Resume() error  { return o.ctx.Resume() }
func (o *otoOutput) Suspend() error { return o.ctx.Suspend() }

func (o *otoOutput) Play(pcm io.Reader) error {
	p := o.ctx.NewPlayer(pcm)
	p.Play()
	go func() {
		for p.IsPlaying() {
			time.Sleep(20 * time.Millisecond)
		}
		_ = p.Close()
	}()
	return nil
}
