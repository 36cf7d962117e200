package router

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/causerie-app/causerie/pkg/config"
	"github.com/causerie-app/causerie/pkg/provider"
	"github.com/causerie-app/causerie/pkg/provider/gemini"
	"github.com/causerie-app/causerie/pkg/provider/openai"
)

// Route is one provider to try, with its attempt budget.
type Route struct {
	Provider    provider.TextProvider
	MaxAttempts int
}

// Router holds the ordered provider chain used for every generation.
type Router struct {
	routes []Route
}

// New builds the chain primary → secondary from configuration. The primary
// gets the configured retry budget; the secondary is tried once.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Router, error) {
	secondary, err := gemini.New(ctx, cfg.Secondary)
	if err != nil {
		return nil, fmt.Errorf("secondary provider: %w", err)
	}
	primary := openai.New(cfg.Primary)

	log := logger.With().Str("component", "router").Logger()
	if !cfg.HasPrimaryCredential() {
		log.Warn().Str("primary", primary.Name()).Msg("primary provider has no credential, requests fall through to the secondary")
	}
	log.Info().
		Str("primary", primary.Name()).
		Str("primary_mode", cfg.Primary.Mode).
		Int("primary_attempts", cfg.Retry.MaxAttempts).
		Str("secondary", secondary.Name()).
		Msg("provider chain")

	return FromProviders(primary, cfg.Retry.MaxAttempts, secondary), nil
}

// FromProviders builds a Router over already constructed providers.
func FromProviders(primary provider.TextProvider, primaryAttempts int, fallbacks ...provider.TextProvider) *Router {
	if primaryAttempts < 1 {
		primaryAttempts = 1
	}
	r := &Router{routes: []Route{{Provider: primary, MaxAttempts: primaryAttempts}}}
	for _, p := range fallbacks {
		r.routes = append(r.routes, Route{Provider: p, MaxAttempts: 1})
	}
	return r
}

// Resolve returns the routes in the order they must be tried.
func (r *Router) Resolve() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}
