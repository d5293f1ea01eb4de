package dockerenv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestScanner(api API) *Scanner {
	log, _ := logtest.NewNullLogger()
	s := NewScanner(api, log)
	s.now = func() time.Time { return scanNow }
	return s
}

// labeledAt builds a managed label set whose timestamp is the given age
// before the test clock.
func labeledAt(age time.Duration) map[string]string {
	return Labels("inst", "sess", scanNow.Add(-age))
}

func managedContainer(id, name string, age time.Duration) container.Summary {
	return container.Summary{
		ID:     id,
		Names:  []string{"/" + name},
		Labels: labeledAt(age),
	}
}

func TestScanContainers_RemovesOldKeepsRecent(t *testing.T) {
	api := &fakeAPI{containers: []container.Summary{
		managedContainer("aaa", "mcpbr-old", 48*time.Hour),
		managedContainer("bbb", "mcpbr-recent", 30*time.Minute),
	}}
	s := newTestScanner(api)

	removed, err := s.ScanContainers(context.Background(), ScanOptions{RetentionHours: 24})

	require.NoError(t, err)
	assert.Equal(t, []string{"mcpbr-old"}, removed)
	assert.Equal(t, []string{"aaa"}, api.stopCalls)
	assert.Equal(t, []string{"aaa"}, api.removeCalls)
}

func TestScanContainers_ForceIgnoresAge(t *testing.T) {
	api := &fakeAPI{containers: []container.Summary{
		managedContainer("aaa", "mcpbr-old", 48*time.Hour),
		managedContainer("bbb", "mcpbr-fresh", time.Minute),
	}}
	s := newTestScanner(api)

	removed, err := s.ScanContainers(context.Background(), ScanOptions{Force: true, RetentionHours: 24})

	require.NoError(t, err)
	assert.Equal(t, []string{"mcpbr-old", "mcpbr-fresh"}, removed)
	assert.Len(t, api.removeCalls, 2)
}

func TestScanContainers_DryRunRemovesNothing(t *testing.T) {
	api := &fakeAPI{containers: []container.Summary{
		managedContainer("aaa", "mcpbr-old", 48*time.Hour),
	}}
	s := newTestScanner(api)

	removed, err := s.ScanContainers(context.Background(), ScanOptions{DryRun: true, RetentionHours: 24})

	require.NoError(t, err)
	// Dry run reports the same set a real sweep would remove
	assert.Equal(t, []string{"mcpbr-old"}, removed)
	assert.Empty(t, api.stopCalls)
	assert.Empty(t, api.removeCalls)
}

func TestScanContainers_MissingTimestampForceOnly(t *testing.T) {
	unlabeled := container.Summary{
		ID:    "ccc",
		Names: []string{"/mcpbr-ageless"},
		Labels: map[string]string{
			LabelManaged:  "true",
			LabelInstance: "inst",
		},
	}
	garbled := container.Summary{
		ID:    "ddd",
		Names: []string{"/mcpbr-garbled"},
		Labels: map[string]string{
			LabelManaged:   "true",
			LabelTimestamp: "not-a-time",
		},
	}

	api := &fakeAPI{containers: []container.Summary{unlabeled, garbled}}
	s := newTestScanner(api)

	removed, err := s.ScanContainers(context.Background(), ScanOptions{RetentionHours: 0})
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = s.ScanContainers(context.Background(), ScanOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"mcpbr-ageless", "mcpbr-garbled"}, removed)
}

func TestScanContainers_RemoveFailureStillCounted(t *testing.T) {
	api := &fakeAPI{
		containers: []container.Summary{managedContainer("aaa", "mcpbr-stuck", 48*time.Hour)},
		stopErr:    errors.New("already stopped"),
		removeErr:  errors.New("device busy"),
	}
	s := newTestScanner(api)

	removed, err := s.ScanContainers(context.Background(), ScanOptions{RetentionHours: 24})

	require.NoError(t, err)
	assert.Equal(t, []string{"mcpbr-stuck"}, removed)
}

func TestScanVolumes_ForcePassedThrough(t *testing.T) {
	api := &fakeAPI{volumes: []*volume.Volume{
		{Name: "mcpbr-vol", Labels: labeledAt(48 * time.Hour)},
	}}
	s := newTestScanner(api)

	removed, err := s.ScanVolumes(context.Background(), ScanOptions{Force: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"mcpbr-vol"}, removed)
	require.Len(t, api.volumeRemoveCalls, 1)
	assert.Equal(t, volumeRemoveCall{Name: "mcpbr-vol", Force: true}, api.volumeRemoveCalls[0])
}

func TestScanVolumes_RetentionKeepsRecent(t *testing.T) {
	api := &fakeAPI{volumes: []*volume.Volume{
		{Name: "mcpbr-old", Labels: labeledAt(2 * time.Hour)},
		{Name: "mcpbr-recent", Labels: labeledAt(10 * time.Minute)},
	}}
	s := newTestScanner(api)

	removed, err := s.ScanVolumes(context.Background(), DefaultScanOptions())

	require.NoError(t, err)
	assert.Equal(t, []string{"mcpbr-old"}, removed)
	require.Len(t, api.volumeRemoveCalls, 1)
	assert.False(t, api.volumeRemoveCalls[0].Force)
}

func TestScanNetworks_BuiltinsNeverRemoved(t *testing.T) {
	api := &fakeAPI{networks: []network.Summary{
		{ID: "n1", Name: "bridge", Labels: labeledAt(48 * time.Hour)},
		{ID: "n2", Name: "host", Labels: labeledAt(48 * time.Hour)},
		{ID: "n3", Name: "none", Labels: labeledAt(48 * time.Hour)},
		{ID: "n4", Name: "mcpbr-net", Labels: labeledAt(48 * time.Hour)},
	}}
	s := newTestScanner(api)

	removed, err := s.ScanNetworks(context.Background(), ScanOptions{Force: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"mcpbr-net"}, removed)
	assert.Equal(t, []string{"n4"}, api.networkRemoveCalls)
}

func TestScanAll_ListFailureIsolated(t *testing.T) {
	api := &fakeAPI{
		listContainersErr: errors.New("engine unavailable"),
		volumes: []*volume.Volume{
			{Name: "mcpbr-vol", Labels: labeledAt(2 * time.Hour)},
		},
	}
	s := newTestScanner(api)

	report := s.ScanAll(context.Background(), DefaultScanOptions())

	// Container listing failed; volumes and networks still swept
	assert.Equal(t, []string{"mcpbr-vol"}, report.VolumesRemoved)
	assert.Empty(t, report.ContainersRemoved)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "Container cleanup failed:")
	assert.Contains(t, report.Errors[0], "engine unavailable")
}

func TestScanContainers_SkipsUnmanaged(t *testing.T) {
	stray := container.Summary{
		ID:     "zzz",
		Names:  []string{"/bystander"},
		Labels: map[string]string{LabelTimestamp: labeledAt(48 * time.Hour)[LabelTimestamp]},
	}
	api := &fakeAPI{containers: []container.Summary{stray}}
	s := newTestScanner(api)

	removed, err := s.ScanContainers(context.Background(), ScanOptions{Force: true})

	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.Empty(t, api.removeCalls)
}
