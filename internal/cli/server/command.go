package server

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/app"
	"github.com/hubportal/hub/internal/cli"
)

var skipMigrations bool

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the helpdesk HTTP API. The central schema is migrated on startup unless disabled.`,
		RunE:  run,
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not migrate the central schema on startup")

	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Init()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if skipMigrations {
		cfg.Postgres.RunMigrations = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server",
		zap.String("environment", cfg.App.Env),
		zap.String("version", cfg.App.Version))

	server, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer server.Close()

	return server.Run(ctx)
}
