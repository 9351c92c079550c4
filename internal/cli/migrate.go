package cli

import (
	"fmt"

	"dqmon/adapters/sqlsource"
	"dqmon/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the report history tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.DSN == "" {
				return fmt.Errorf("store.dsn is not configured")
			}
			log := a.logger(cfg, false)
			defer log.Sync()

			db, err := sqlx.ConnectContext(cmd.Context(), sqlsource.DriverName(cfg.Store.Driver), cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("failed to connect to report store: %w", err)
			}
			defer db.Close()

			runner := migration.NewRunner(log)
			if err := runner.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report store migrated to version %s\n", runner.Version())
			return nil
		},
	}
}
