package cli

import (
	"encoding/json"

	"dqmon/internal/container"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var noAlert bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one monitoring cycle",
		Long: `Run one monitoring cycle: load, evaluate, persist and alert.

The report record is printed as JSON. Exit status is 2 when issues were found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			log := a.logger(cfg, false)
			defer log.Sync()

			c, err := container.New(cfg, a.configPath, log)
			if err != nil {
				return err
			}
			if err := c.Init(cmd.Context(), container.Options{WithoutAlerts: noAlert}); err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			res, cycleErr := c.Monitor.RunCycle(cmd.Context())
			if res == nil {
				return cycleErr
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Record); err != nil {
				return err
			}
			if cycleErr != nil {
				return &exitError{code: ExitError, err: cycleErr}
			}
			if res.Record.HasIssues() {
				return &exitError{code: ExitIssues}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noAlert, "no-alert", false, "evaluate and persist without sending alerts")
	return cmd
}
