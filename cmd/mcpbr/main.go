package main

import (
	"fmt"
	"os"

	"github.com/mcpbr/mcpbr/internal/cli"
	"github.com/mcpbr/mcpbr/internal/dockerenv"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	dockerenv.RegisterSignalHandlers()

	app := cli.New()
	app.SetVersion(version, commit, date)

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
