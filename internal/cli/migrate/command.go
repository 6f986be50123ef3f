package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hubportal/hub/internal/cli"
	"github.com/hubportal/hub/internal/persistence"
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Central database migrations",
		Long:  `Apply or inspect the central schema. Tenant databases are migrated with "hub tenant migrate".`,
		RunE:  runUp,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending central migrations",
			RunE:  runUp,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the central schema version",
			RunE:  runStatus,
		},
	)

	return cmd
}

func runUp(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Init()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	version, err := persistence.MigrateCentral(pg.Pool, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "central schema at version %d\n", version.Version)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Init()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	version, err := persistence.CentralStatus(pg.Pool)
	if err != nil {
		return err
	}
	state := "clean"
	if version.Dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "central schema version %d (%s)\n", version.Version, state)
	return nil
}
