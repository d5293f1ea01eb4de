package dockerenv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/sirupsen/logrus"
)

// DefaultRetentionHours is how old a labeled resource must be before the
// scanner considers it orphaned.
const DefaultRetentionHours = 1

// scanStopTimeoutSeconds bounds the graceful stop before force-removal.
const scanStopTimeoutSeconds = 5

// builtinNetworks are the engine's default networks. They are never removed,
// labels notwithstanding.
var builtinNetworks = map[string]bool{
	"bridge": true,
	"host":   true,
	"none":   true,
}

// ScanOptions control an orphaned-resource sweep.
type ScanOptions struct {
	// DryRun computes the removal set without removing anything
	DryRun bool

	// Force ignores the retention age and, for volumes, detaches in-use
	// volumes
	Force bool

	// RetentionHours is the minimum age before a resource is eligible for
	// removal
	RetentionHours int
}

// DefaultScanOptions returns a non-destructive-by-age sweep: real removal,
// no force, default retention.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{RetentionHours: DefaultRetentionHours}
}

// Scanner discovers and removes orphaned mcpbr resources across runs by
// querying the engine for anything carrying the system's labels.
type Scanner struct {
	api API
	log logrus.FieldLogger

	// now is replaceable in tests for retention-age checks
	now func() time.Time
}

// NewScanner creates a Scanner against the given engine client.
func NewScanner(api API, log logrus.FieldLogger) *Scanner {
	return &Scanner{api: api, log: log, now: time.Now}
}

// ScanContainers removes orphaned labeled containers past the retention age
// and returns their names. Stop/remove failures are best-effort: logged, and
// the container still counted as attempted. The returned error covers listing
// failures only.
func (s *Scanner) ScanContainers(ctx context.Context, opts ScanOptions) ([]string, error) {
	summaries, err := s.api.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: managedFilter(),
	})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	removed := []string{}
	stopTimeout := scanStopTimeoutSeconds

	for _, c := range summaries {
		if c.Labels[LabelManaged] != "true" {
			continue
		}
		if !s.eligible(c.Labels[LabelTimestamp], opts) {
			continue
		}

		name := containerDisplayName(c)
		if opts.DryRun {
			removed = append(removed, name)
			continue
		}

		if err := s.api.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &stopTimeout}); err != nil {
			s.log.WithError(err).WithField("container", name).Warn("Failed to stop orphaned container")
		}
		if err := s.api.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			s.log.WithError(err).WithField("container", name).Warn("Failed to remove orphaned container")
		}
		removed = append(removed, name)
	}

	return removed, nil
}

// ScanVolumes removes orphaned labeled volumes past the retention age and
// returns their names.
func (s *Scanner) ScanVolumes(ctx context.Context, opts ScanOptions) ([]string, error) {
	resp, err := s.api.VolumeList(ctx, volume.ListOptions{Filters: managedFilter()})
	if err != nil {
		return nil, fmt.Errorf("listing volumes: %w", err)
	}

	removed := []string{}
	for _, v := range resp.Volumes {
		if v == nil || v.Labels[LabelManaged] != "true" {
			continue
		}
		if !s.eligible(v.Labels[LabelTimestamp], opts) {
			continue
		}

		if opts.DryRun {
			removed = append(removed, v.Name)
			continue
		}

		if err := s.api.VolumeRemove(ctx, v.Name, opts.Force); err != nil {
			s.log.WithError(err).WithField("volume", v.Name).Warn("Failed to remove orphaned volume")
		}
		removed = append(removed, v.Name)
	}

	return removed, nil
}

// ScanNetworks removes orphaned labeled networks past the retention age and
// returns their names. The engine's builtin networks are always excluded.
func (s *Scanner) ScanNetworks(ctx context.Context, opts ScanOptions) ([]string, error) {
	summaries, err := s.api.NetworkList(ctx, network.ListOptions{Filters: managedFilter()})
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}

	removed := []string{}
	for _, n := range summaries {
		if builtinNetworks[n.Name] {
			continue
		}
		if n.Labels[LabelManaged] != "true" {
			continue
		}
		if !s.eligible(n.Labels[LabelTimestamp], opts) {
			continue
		}

		if opts.DryRun {
			removed = append(removed, n.Name)
			continue
		}

		if err := s.api.NetworkRemove(ctx, n.ID); err != nil {
			s.log.WithError(err).WithField("network", n.Name).Warn("Failed to remove orphaned network")
		}
		removed = append(removed, n.Name)
	}

	return removed, nil
}

// ScanAll sweeps containers, volumes, and networks. A listing failure in one
// resource class does not prevent scanning the others; it is recorded in the
// report's error list with a category prefix.
func (s *Scanner) ScanAll(ctx context.Context, opts ScanOptions) CleanupReport {
	var report CleanupReport

	if removed, err := s.ScanContainers(ctx, opts); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Container cleanup failed: %v", err))
	} else {
		report.ContainersRemoved = removed
	}

	if removed, err := s.ScanVolumes(ctx, opts); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Volume cleanup failed: %v", err))
	} else {
		report.VolumesRemoved = removed
	}

	if removed, err := s.ScanNetworks(ctx, opts); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Network cleanup failed: %v", err))
	} else {
		report.NetworksRemoved = removed
	}

	return report
}

// eligible reports whether a resource with the given timestamp label is old
// enough to remove. Force ignores age entirely. A missing or unparsable
// timestamp means the age is unknown; such resources are removable only
// under force.
func (s *Scanner) eligible(timestamp string, opts ScanOptions) bool {
	if opts.Force {
		return true
	}

	created, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return false
	}

	age := s.now().UTC().Sub(created.UTC())
	return age >= time.Duration(opts.RetentionHours)*time.Hour
}

func managedFilter() filters.Args {
	return filters.NewArgs(filters.Arg("label", LabelManaged+"=true"))
}

func containerDisplayName(c container.Summary) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}
