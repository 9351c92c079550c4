package cli

import (
	"encoding/json"
	"os"

	"dqmon/adapters/excel"
	"dqmon/adapters/stats/isolation"
	"dqmon/domain/quality"
	"dqmon/internal/config"
	"dqmon/internal/engine"

	"github.com/spf13/cobra"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		sheet         string
		contamination float64
		missingLimit  int
		dupLimit      int
		seed          int64
	)

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Evaluate a CSV or XLSX file and print the report",
		Long: `Evaluate a CSV or XLSX file once and print the report as JSON.
Nothing is persisted and no alert is sent.

Thresholds and custom rules come from the config file when it exists; flags
override them. Exit status is 2 when issues were found.

Example: dqmon check data.csv --contamination 0.05`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			th := quality.DefaultThresholdConfig()
			forestOpts := isolation.DefaultOptions()
			var cfg *config.Config
			if _, err := os.Stat(a.configPath); err == nil {
				loaded, err := a.loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
				th = cfg.ThresholdConfig()
				forestOpts.Seed = cfg.Anomaly.Seed
				forestOpts.Trees = cfg.Anomaly.Trees
				forestOpts.ScoreCutoff = cfg.Anomaly.ScoreCutoff
			}

			flags := cmd.Flags()
			if flags.Changed("contamination") {
				th.Contamination = contamination
			}
			if flags.Changed("missing-limit") {
				th.MissingValueLimit = missingLimit
			}
			if flags.Changed("duplicate-limit") {
				th.DuplicateLimit = dupLimit
			}
			if flags.Changed("seed") {
				forestOpts.Seed = seed
			}
			if err := th.Validate(); err != nil {
				return err
			}

			log := a.logger(cfg, false)
			defer log.Sync()

			reader := excel.NewDataReader(excel.FileConfig{FilePath: args[0], Sheet: sheet}, log)
			ds, loadErr := reader.Load(cmd.Context())
			report := engine.New(log, isolation.NewForest(forestOpts, nil)).Evaluate(ds, loadErr, th)
			record := quality.NewReportRecord(reader.Name(), report)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(record); err != nil {
				return err
			}
			if record.HasIssues() {
				return &exitError{code: ExitIssues}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().Float64Var(&contamination, "contamination", 0.1, "expected outlier fraction in (0,1)")
	cmd.Flags().IntVar(&missingLimit, "missing-limit", 0, "missing values tolerated before a finding")
	cmd.Flags().IntVar(&dupLimit, "duplicate-limit", 0, "duplicate rows tolerated before a finding")
	cmd.Flags().Int64Var(&seed, "seed", isolation.DefaultSeed, "isolation forest seed")
	return cmd
}
