package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduler engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.engine.Start(gctx) })
			g.Go(func() error { return a.server.Run(gctx) })

			err = g.Wait()
			// Post-commit schedules still in flight must reach the store
			// before it closes.
			a.runner.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			logger.Info("studentsvc stopped")
			return err
		},
	}
}
