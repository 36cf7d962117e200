package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/causerie-app/causerie/pkg/audio"
	"github.com/causerie-app/causerie/pkg/speech"
)

func newSpeakCmd(configPath *string) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "speak TEXT",
		Short: "Synthesize French speech and play it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			b64, err := a.speech.Synthesize(ctx, strings.Join(args, " "))
			if err != nil {
				a.log.Debug().Err(err).Msg("speech failed")
				return errors.New(speech.UserMessage(err))
			}

			if outPath != "" {
				pcm, err := base64.StdEncoding.DecodeString(b64)
				if err != nil {
					return fmt.Errorf("decode audio: %w", err)
				}
				if err := os.WriteFile(outPath, pcm, 0o644); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
				fmt.Printf("Wrote %d Hz s16le mono PCM to %s\n", a.speech.SampleRate(), outPath)
				return nil
			}

			buf, err := audio.Decode(b64, a.speech.SampleRate(), 1)
			if err != nil {
				return err
			}
			engine := audio.NewEngine(audio.NewOtoOutput, a.speech.SampleRate(), 1, a.log)
			if err := engine.Play(buf); err != nil {
				return fmt.Errorf("play audio: %w", err)
			}

			// Players are one-shot; wait out the clip before exiting.
			clip := time.Duration(buf.Frames()) * time.Second / time.Duration(buf.SampleRate)
			select {
			case <-ctx.Done():
			case <-time.After(clip + 200*time.Millisecond):
			}
			return engine.Suspend()
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write raw PCM to a file instead of playing it")
	return cmd
}
