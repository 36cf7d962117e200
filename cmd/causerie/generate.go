package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		language string
		level    string
		copyOut  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate learning content from the command line",
	}

	// run opens the app, calls fn and prints its result.
	run := func(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, *configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		if language == "" {
			language = a.cfg.Learner.NativeLanguage
		}
		if level == "" {
			level = a.cfg.Learner.Level
		}

		v, err := fn(ctx, a)
		if err != nil {
			return err
		}

		var raw, shown string
		if md, ok := v.(markdown); ok {
			raw = string(md)
			shown = renderMarkdown(raw)
		} else {
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return err
			}
			raw = string(data)
			shown = raw
		}
		fmt.Println(shown)

		if copyOut {
			if err := clipboard.WriteAll(raw); err != nil {
				a.log.Warn().Err(err).Msg("copy to clipboard failed")
			}
		}
		return nil
	}

	grammarCmd := &cobra.Command{
		Use:   "grammar TOPIC",
		Short: "Explain a grammar topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				text, err := a.gen.GrammarExplanation(ctx, strings.Join(args, " "), language)
				return markdown(text), err
			})
		},
	}

	conjugationCmd := &cobra.Command{
		Use:   "conjugation VERB",
		Short: "Conjugate a verb in seven tenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.gen.Conjugation(ctx, args[0], language)
			})
		},
	}

	quizCmd := &cobra.Command{
		Use:   "quiz TOPIC",
		Short: "Generate a multiple choice quiz",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.gen.Quiz(ctx, strings.Join(args, " "), level, language)
			})
		},
	}

	flashcardsCmd := &cobra.Command{
		Use:   "flashcards THEME",
		Short: "Generate vocabulary flashcards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.gen.Flashcards(ctx, strings.Join(args, " "), language)
			})
		},
	}

	phrasesCmd := &cobra.Command{
		Use:   "phrases SITUATION",
		Short: "Generate useful phrases for a situation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.gen.Phrases(ctx, strings.Join(args, " "), language)
			})
		},
	}

	examCmd := &cobra.Command{
		Use:   "exam",
		Short: "Generate a mock exam",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.gen.Exam(ctx, level, language)
			})
		},
	}

	var essayPath string
	writingCmd := &cobra.Command{
		Use:   "writing TASK",
		Short: "Correct an essay written for TASK",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			essay, err := readEssay(essayPath)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.gen.WritingFeedback(ctx, strings.Join(args, " "), essay, language)
			})
		},
	}
	writingCmd.Flags().StringVarP(&essayPath, "essay", "e", "-", "essay file, - for stdin")

	speakingCmd := &cobra.Command{
		Use:   "speaking TASK",
		Short: "Generate a spoken model answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.gen.SpeakingExample(ctx, strings.Join(args, " "), level)
			})
		},
	}

	cmd.PersistentFlags().StringVar(&language, "language", "", "explanation language (default: learner native language)")
	cmd.PersistentFlags().StringVar(&level, "level", "", "learner level (default: learner level)")
	cmd.PersistentFlags().BoolVar(&copyOut, "copy", false, "also copy the result to the clipboard")
	cmd.AddCommand(grammarCmd, conjugationCmd, quizCmd, flashcardsCmd, phrasesCmd, examCmd, writingCmd, speakingCmd)
	return cmd
}

// markdown marks generated text that is rendered rather than JSON encoded.
type markdown string

func readEssay(path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read essay: %w", err)
	}
	essay := strings.TrimSpace(string(data))
	if essay == "" {
		return "", errors.New("essay is empty")
	}
	return essay, nil
}
