package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/studygroups/internal/app"
	"github.com/Freeeeeet/studygroups/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "studygroups",
		Short:        "Study group matching engine",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
	)
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the study group HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLogger(func(cfg *config.Config, logger *zap.Logger) error {
				logger.Info("Starting study group engine",
					zap.String("environment", cfg.Environment),
					zap.String("addr", cfg.HTTPAddr),
					zap.Duration("pool_ttl", cfg.PoolTTL),
				)
				return app.Serve(cmd.Context(), cfg, logger)
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLogger(func(cfg *config.Config, logger *zap.Logger) error {
				return app.Migrate(cmd.Context(), cfg, logger)
			})
		},
	}
}

func withLogger(run func(cfg *config.Config, logger *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return err
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Command failed", zap.Error(err))
		return err
	}
	return nil
}
