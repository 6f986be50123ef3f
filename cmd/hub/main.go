package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hubportal/hub/internal/cli/migrate"
	"github.com/hubportal/hub/internal/cli/server"
	"github.com/hubportal/hub/internal/cli/tenant"
	"github.com/hubportal/hub/internal/cli/token"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "hub",
		Short:        "Hub - multi-tenant helpdesk",
		Long:         `Hub serves the helpdesk API and manages the central and per-client databases.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		tenant.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
