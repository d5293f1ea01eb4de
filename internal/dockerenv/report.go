package dockerenv

import (
	"fmt"
	"strings"
)

// reportListLimit is how many resource names are shown per category before
// the rendering truncates to "... and N more".
const reportListLimit = 5

// CleanupReport aggregates the outcome of one cleanup pass. It is a value
// object: produced fresh per invocation, appended to during the pass, and
// never mutated afterwards.
type CleanupReport struct {
	ContainersRemoved []string `json:"containers_removed" yaml:"containers_removed"`
	VolumesRemoved    []string `json:"volumes_removed" yaml:"volumes_removed"`
	NetworksRemoved   []string `json:"networks_removed" yaml:"networks_removed"`
	TempDirsCleaned   int      `json:"temp_dirs_cleaned" yaml:"temp_dirs_cleaned"`
	Errors            []string `json:"errors" yaml:"errors"`
}

// TotalRemoved is the number of containers, volumes, and networks removed.
// Temp directories are not counted; they are not runtime resources.
func (r CleanupReport) TotalRemoved() int {
	return len(r.ContainersRemoved) + len(r.VolumesRemoved) + len(r.NetworksRemoved)
}

// String renders the report for humans: one line per resource category with a
// count, long name lists truncated, and an error count when errors occurred.
func (r CleanupReport) String() string {
	var b strings.Builder

	if line := formatResourceLine("Containers", r.ContainersRemoved); line != "" {
		b.WriteString(line + "\n")
	}
	if line := formatResourceLine("Volumes", r.VolumesRemoved); line != "" {
		b.WriteString(line + "\n")
	}
	if line := formatResourceLine("Networks", r.NetworksRemoved); line != "" {
		b.WriteString(line + "\n")
	}
	if r.TempDirsCleaned > 0 {
		fmt.Fprintf(&b, "Temp directories: %d cleaned\n", r.TempDirsCleaned)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Errors: %d\n", len(r.Errors))
	}

	if b.Len() == 0 {
		return "No resources removed"
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatResourceLine renders "Containers: 7 removed (a, b, c, d, e, ... and 2
// more)", or "" when the list is empty.
func formatResourceLine(category string, names []string) string {
	if len(names) == 0 {
		return ""
	}

	shown := names
	var suffix string
	if len(names) > reportListLimit {
		shown = names[:reportListLimit]
		suffix = fmt.Sprintf(", ... and %d more", len(names)-reportListLimit)
	}

	return fmt.Sprintf("%s: %d removed (%s%s)", category, len(names), strings.Join(shown, ", "), suffix)
}
