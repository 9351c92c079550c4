package main

import (
	"os"

	"dqmon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
