package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/causerie-app/causerie/pkg/api"
	"github.com/causerie-app/causerie/pkg/relay"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the causerie API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if listen != "" {
				a.cfg.Listen = listen
			}

			var relayHandler http.Handler
			if a.cfg.Relay.Enabled {
				relayHandler = relay.New(a.cfg.Relay, a.log)
			}

			srv := api.New(api.Options{
				Listen:          a.cfg.Listen,
				Generator:       a.gen,
				Speech:          a.speech,
				Cache:           a.cache,
				Relay:           relayHandler,
				DefaultLanguage: a.cfg.Learner.NativeLanguage,
				Logger:          a.log,
			})

			a.log.Info().
				Str("db", a.cfg.DBPath).
				Str("primary", a.cfg.Primary.Name).
				Str("primary_mode", a.cfg.Primary.Mode).
				Str("speech", a.cfg.Speech.Backend).
				Bool("relay", a.cfg.Relay.Enabled).
				Msg("starting causerie")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	return cmd
}
