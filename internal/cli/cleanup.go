package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mcpbr/mcpbr/internal/config"
	"github.com/mcpbr/mcpbr/internal/dockerenv"
)

// CleanupOptions holds flags for the cleanup command
type CleanupOptions struct {
	DryRun         bool // Compute the removal set without removing anything
	Force          bool // Ignore retention age; forcibly detach in-use volumes
	RetentionHours int  // Minimum resource age before removal
}

// NewCleanupCmd creates the cleanup command
func NewCleanupCmd(app *App) *cobra.Command {
	opts := CleanupOptions{
		RetentionHours: -1, // -1 means "use the configured value"
	}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove orphaned mcpbr containers, volumes, and networks",
		Long: `Cleanup sweeps the Docker daemon for resources labeled by mcpbr and
removes any older than the retention age.

Use --dry-run to preview the removal set. Use --force to remove labeled
resources regardless of age.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Cleanup(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be removed without removing it")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Ignore retention age and detach in-use volumes")
	cmd.Flags().IntVar(&opts.RetentionHours, "retention-hours", -1, "Minimum resource age in hours (default: configured value)")

	return cmd
}

// Cleanup runs the orphaned-resource sweep and prints the report
func (a *App) Cleanup(cmd *cobra.Command, opts CleanupOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	retention := cfg.Docker.RetentionHours
	if opts.RetentionHours >= 0 {
		retention = opts.RetentionHours
	}

	ctx := cmd.Context()
	api, err := dockerenv.NewClient(ctx)
	if err != nil {
		return err
	}
	defer api.Close()

	scanner := dockerenv.NewScanner(api, a.log)
	report := scanner.ScanAll(ctx, dockerenv.ScanOptions{
		DryRun:         opts.DryRun,
		Force:          opts.Force,
		RetentionHours: retention,
	})

	fmt.Fprintln(cmd.OutOrStdout(), renderReport(report, opts.DryRun))

	if len(report.Errors) > 0 {
		return fmt.Errorf("cleanup completed with %d errors", len(report.Errors))
	}
	return nil
}

func (a *App) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadConfigFromPath(a.configPath)
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return config.LoadConfig(dir)
}

var (
	reportTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	reportErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// renderReport styles the report's human-readable form for the terminal.
func renderReport(report dockerenv.CleanupReport, dryRun bool) string {
	title := "Cleanup report"
	if dryRun {
		title = "Cleanup report (dry run)"
	}

	var b strings.Builder
	b.WriteString(reportTitleStyle.Render(title))
	b.WriteString("\n")

	for _, line := range strings.Split(report.String(), "\n") {
		if strings.HasPrefix(line, "Errors:") {
			b.WriteString(reportErrorStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	for _, errMsg := range report.Errors {
		b.WriteString(reportErrorStyle.Render("  - " + errMsg))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
