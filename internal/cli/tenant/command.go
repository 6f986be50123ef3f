package tenant

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/app"
	"github.com/hubportal/hub/internal/cli"
)

// NewCommand groups tenant database maintenance.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant database utilities (provision, migrate, status)",
	}

	cmd.AddCommand(provisionCommand(), migrateCommand(), statusCommand())
	return cmd
}

func withCentral(ctx context.Context, fn func(*app.Central, *zap.Logger) error) error {
	cfg, logger, err := cli.Init()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	central, err := app.OpenCentral(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer central.Close()
	return fn(central, logger)
}

func provisionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "provision <clientId>",
		Short: "Create, migrate and seed the helpdesk database of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCentral(cmd.Context(), func(central *app.Central, _ *zap.Logger) error {
				clientID := args[0]
				if _, err := central.Repos.Org.GetClient(cmd.Context(), clientID); err != nil {
					return fmt.Errorf("client %s: %w", clientID, err)
				}
				result, err := central.Provisioner.Provision(cmd.Context(), clientID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if result.AlreadyExisted {
					fmt.Fprintf(out, "client %s already provisioned (database %s)\n", clientID, result.Record.Database)
					return nil
				}
				fmt.Fprintf(out, "client %s provisioned: database %s, created=%t, migrations=%d, seeded=%t\n",
					clientID, result.Record.Database, result.DatabaseCreated, result.Applied, result.Seeded)
				return nil
			})
		},
	}
}

func migrateCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "migrate [clientId]",
		Short: "Apply pending migrations to one tenant or, with --all, every tenant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass a clientId or --all")
			}
			return withCentral(cmd.Context(), func(central *app.Central, _ *zap.Logger) error {
				out := cmd.OutOrStdout()
				if !all {
					n, err := central.Provisioner.Migrate(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d migrations applied\n", args[0], n)
					return nil
				}
				applied, err := central.Provisioner.MigrateAll(cmd.Context())
				ids := make([]string, 0, len(applied))
				for id := range applied {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					fmt.Fprintf(out, "%s: %d migrations applied\n", id, applied[id])
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Migrate every provisioned tenant")
	return cmd
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <clientId>",
		Short: "Show the migration ledger of a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCentral(cmd.Context(), func(central *app.Central, _ *zap.Logger) error {
				rec, states, err := central.Provisioner.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "database\t%s@%s:%d\n", rec.Database, rec.Host, rec.Port)
				fmt.Fprintln(w, "VERSION\tSOURCE\tAPPLIED")
				for _, st := range states {
					applied := "pending"
					if st.Applied && st.AppliedAt != nil {
						applied = st.AppliedAt.Format("2006-01-02 15:04:05")
					} else if st.Applied {
						applied = "yes"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", st.Version, st.Source, applied)
				}
				return w.Flush()
			})
		},
	}
}
