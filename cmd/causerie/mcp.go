package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/causerie-app/causerie/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve causerie tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := mcp.Options{
				Generator: a.gen,
				Cache:     a.cache,
				Language:  a.cfg.Learner.NativeLanguage,
				Level:     a.cfg.Learner.Level,
				Version:   version,
				Logger:    a.log,
			}
			if a.tracker != nil {
				opts.Attempts = a.tracker
			}
			return mcp.New(opts).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
