// Package cli implements the dqmon command line.
package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"dqmon/internal"
	"dqmon/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	ExitOK     = 0
	ExitError  = 1
	ExitIssues = 2

	defaultConfigFile = "data_quality_config.json"
)

// exitError carries a process exit status out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error { return e.err }

type app struct {
	configPath string
	envFile    string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer
}

// Execute runs the command line and returns the process exit status
func Execute() int {
	return ExecuteArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs the command line with explicit arguments and output
func ExecuteArgs(args []string, out, errOut io.Writer) int {
	cmd := NewRootCommandWithIO(out, errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if stderrors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(errOut, "Error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(errOut, "Error:", err)
	return ExitError
}

func NewRootCommand() *cobra.Command {
	return NewRootCommandWithIO(os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "dqmon",
		Short:         "Periodic data quality monitor",
		Long:          "dqmon evaluates a tabular dataset for missing values, duplicates, outliers and custom rule violations, and alerts when issues are found.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is fine; the environment may already be set
			if _, err := os.Stat(a.envFile); err == nil {
				if err := godotenv.Load(a.envFile); err != nil {
					return fmt.Errorf("failed to load %s: %w", a.envFile, err)
				}
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", envOr("DQ_CONFIG", defaultConfigFile), "path to the JSON config file")
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (overrides log.level)")

	cmd.AddCommand(
		newServeCmd(a),
		newRunCmd(a),
		newCheckCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

// logger writes to stderr and, for long-running commands, the rotated log file
func (a *app) logger(cfg *config.Config, toFile bool) *internal.Logger {
	level := a.logLevel
	if level == "" && cfg != nil {
		level = cfg.Log.Level
	}
	if toFile {
		return internal.NewFileLogger(internal.ParseLogLevel(level), cfg.Log.File)
	}
	return internal.NewLoggerTo(internal.ParseLogLevel(level), a.stderr)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
