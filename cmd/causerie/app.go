package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	cachepkg "github.com/causerie-app/causerie/pkg/cache/sqlite"
	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/generator"
	"github.com/causerie-app/causerie/pkg/router"
	"github.com/causerie-app/causerie/pkg/speech"
	"github.com/causerie-app/causerie/pkg/speech/gemini"
	"github.com/causerie-app/causerie/pkg/speech/polly"
	"github.com/causerie-app/causerie/pkg/tracker"
)

// newLogger writes human readable output to a terminal and JSON otherwise.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

// loadConfig reads the config and builds the root logger from it.
func loadConfig(path string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, newLogger(cfg.LogLevel), nil
}

func openCache(cfg *config.Config, logger zerolog.Logger) (*cachepkg.Cache, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	c, err := cachepkg.New(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return c, nil
}

// app holds the components shared by serve, generate and speak.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	cache   *cachepkg.Cache
	tracker *tracker.SQLiteTracker
	speech  *speech.Client
	gen     *generator.Generator
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logger}
	a.cache, err = openCache(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := generator.Deps{
		Cache:     a.cache,
		Learner:   cfg.Learner,
		BaseDelay: cfg.Retry.BaseDelay,
		Logger:    logger,
	}

	if cfg.Tracker.Enabled {
		a.tracker, err = tracker.New(cfg.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init tracker: %w", err)
		}
		deps.Tracker = a.tracker
	}

	deps.Router, err = router.New(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	synth, err := newSynthesizer(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init speech: %w", err)
	}
	a.speech = speech.New(synth, a.cache, cfg.Speech.RequestsPerMinute, logger)
	deps.Speech = a.speech

	a.gen = generator.New(deps)
	return a, nil
}

func newSynthesizer(ctx context.Context, cfg *config.Config) (speech.Synthesizer, error) {
	if cfg.Speech.Backend == config.SpeechPolly {
		return polly.New(cfg.Speech), nil
	}
	return gemini.New(ctx, cfg.Speech, cfg.Secondary)
}

func (a *app) Close() {
	if a.tracker != nil {
		_ = a.tracker.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}
