package main

import (
	"os"

	"dqmon/internal/cli"
)

// Running the module root with no arguments starts the monitor daemon
func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}
	os.Exit(cli.ExecuteArgs(args, os.Stdout, os.Stderr))
}
