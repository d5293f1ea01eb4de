package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// App represents the CLI application with all wired dependencies
type App struct {
	// Root command
	rootCmd *cobra.Command

	// Structured logger shared by all commands
	log *logrus.Logger

	// Runtime state
	verbose    bool
	configPath string

	// Version information
	version string
	commit  string
	date    string
}

// New creates a new CLI application
func New() *App {
	app := &App{
		log: logrus.New(),
	}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion sets the version string for the version command
func (a *App) SetVersion(version, commit, date string) {
	a.version = version
	a.commit = commit
	a.date = date
}

// setupRootCmd configures the root Cobra command
func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "mcpbr",
		Short: "Docker-backed task execution engine for agent benchmarks",
		Long: `mcpbr provisions isolated Docker environments for benchmark tasks,
retries transient daemon failures, and reclaims every container, volume,
and network it creates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.verbose {
				a.log.SetLevel(logrus.DebugLevel)
			}
		},
	}

	a.rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false,
		"Verbose output")
	a.rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "",
		"Path to config file (default: ./mcpbr.yaml)")

	a.rootCmd.AddCommand(NewCleanupCmd(a))
	a.rootCmd.AddCommand(NewVersionCmd(a))
}
