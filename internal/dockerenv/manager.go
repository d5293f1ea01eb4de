package dockerenv

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/mcpbr/mcpbr/internal/config"
	"github.com/mcpbr/mcpbr/internal/repo"
	"github.com/mcpbr/mcpbr/internal/task"
)

// containerWorkspaceDir is where the task's repository is mounted inside the
// container.
const containerWorkspaceDir = "/workspace"

// containerScratchDir is where the per-task scratch volume is mounted.
const containerScratchDir = "/scratch"

// stopTimeoutSeconds bounds the graceful stop during cleanup before
// force-removal.
const stopTimeoutSeconds = 5

// ProvisioningError reports a failure during environment creation along with
// the step that failed.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Materializer populates a workspace directory with a task's repository
// content at its base revision. It is an external collaborator of the engine.
type Materializer interface {
	Materialize(ctx context.Context, t task.Task, dir string) error
}

// ManagerDeps holds the external collaborators an EnvironmentManager needs.
// Nil fields fall back to defaults: a git-based materializer and the
// config-driven installer.
type ManagerDeps struct {
	Materializer Materializer
	Installer    ToolInstaller
}

// ownedContainer tracks one container registered for cleanup.
type ownedContainer struct {
	ID   string
	Name string
}

// EnvironmentManager owns the lifecycle of task execution environments: it
// provisions them, tracks every resource it creates, and reclaims everything
// on cleanup even when a creation step fails partway.
type EnvironmentManager struct {
	api          API
	cfg          *config.Config
	log          logrus.FieldLogger
	provisioner  *Provisioner
	materializer Materializer
	installer    ToolInstaller
	sessionID    string

	// mu guards the resource registries below; cleanup can race with
	// in-flight creation when a cancellation fires.
	mu         sync.Mutex
	containers []ownedContainer
	volumes    []string
	tempDirs   []string
}

// NewEnvironmentManager creates a manager for one run session and registers
// it with the process-exit guard so its resources are reclaimed on abrupt
// termination.
func NewEnvironmentManager(api API, cfg *config.Config, log logrus.FieldLogger, deps ManagerDeps) *EnvironmentManager {
	m := &EnvironmentManager{
		api:          api,
		cfg:          cfg,
		log:          log.WithField("component", "dockerenv"),
		provisioner:  NewProvisionerWithPolicy(api, log, retryPolicyFromConfig(cfg)),
		materializer: deps.Materializer,
		installer:    deps.Installer,
		sessionID:    ulid.Make().String(),
	}
	if m.materializer == nil {
		m.materializer = repo.NewGitMaterializer()
	}
	if m.installer == nil {
		m.installer = installerFromConfig(api, cfg, m.log)
	}

	registerManager(m)
	return m
}

// SessionID returns the run session id stamped on every resource this
// manager creates.
func (m *EnvironmentManager) SessionID() string { return m.sessionID }

// Environment is the handle for one task's isolated execution environment.
// It owns exactly one container, zero or one scratch volume, and one
// workspace directory.
type Environment struct {
	ID            string
	ContainerID   string
	ContainerName string
	Volume        string
	Workspace     string

	manager *EnvironmentManager

	mu      sync.Mutex
	cleaned bool
}

// CreateEnvironment provisions an isolated environment for the task:
// workspace, repository content, labeled container, and agent tooling, in
// that order. Every resource is registered for cleanup the moment it exists,
// before the next step can fail, so a partial failure never leaks.
func (m *EnvironmentManager) CreateEnvironment(ctx context.Context, t task.Task) (*Environment, error) {
	envID := strings.Split(uuid.NewString(), "-")[0]
	log := m.log.WithFields(logrus.Fields{"instance": t.InstanceID, "env": envID})

	workspace, err := os.MkdirTemp(m.cfg.Docker.WorkspaceRoot, "mcpbr-"+sanitizeName(t.InstanceID)+"-")
	if err != nil {
		return nil, &ProvisioningError{Step: "workspace", Err: err}
	}
	m.registerTempDir(workspace)

	if err := m.materializer.Materialize(ctx, t, workspace); err != nil {
		return nil, &ProvisioningError{Step: "repository", Err: err}
	}

	imageRef := m.cfg.ImageForInstance(t.InstanceID)
	if !m.cfg.Docker.UsePrebuiltImages {
		if err := m.ensureImage(ctx, imageRef); err != nil {
			return nil, &ProvisioningError{Step: "image", Err: err}
		}
	}

	labels := Labels(t.InstanceID, m.sessionID, time.Now())
	spec := ContainerSpec{
		Image:   imageRef,
		Name:    fmt.Sprintf("mcpbr-%s-%s", sanitizeName(t.InstanceID), envID),
		Cmd:     []string{"sleep", "infinity"},
		WorkDir: containerWorkspaceDir,
		Env:     t.Env,
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: containerWorkspaceDir,
		}},
		Labels:  labels,
		Network: m.cfg.Docker.Network,
	}

	var scratchVolume string
	if m.cfg.Docker.ScratchVolume {
		vol, err := m.api.VolumeCreate(ctx, volume.CreateOptions{
			Name:   spec.Name + "-scratch",
			Labels: labels,
		})
		if err != nil {
			return nil, &ProvisioningError{Step: "volume", Err: err}
		}
		m.registerVolume(vol.Name)
		scratchVolume = vol.Name
		spec.Mounts = append(spec.Mounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: vol.Name,
			Target: containerScratchDir,
		})
	}

	containerID, err := m.provisioner.Create(ctx, spec)
	if err != nil {
		return nil, &ProvisioningError{Step: "container", Err: err}
	}
	m.registerContainer(containerID, spec.Name)

	if err := m.installer.Install(ctx, containerID); err != nil {
		return nil, &ProvisioningError{Step: "tooling", Err: err}
	}

	log.WithField("container", spec.Name).Info("Environment ready")

	return &Environment{
		ID:            envID,
		ContainerID:   containerID,
		ContainerName: spec.Name,
		Volume:        scratchVolume,
		Workspace:     workspace,
		manager:       m,
	}, nil
}

// CleanupAll reclaims every resource this manager still owns: containers are
// stopped then force-removed, volumes removed, temp directories deleted.
// Individual failures are collected in the report, never raised, and one
// failure does not abort the rest. Safe to call multiple times; subsequent
// calls report zero removals. Cleanup runs to completion even when ctx is
// already canceled.
func (m *EnvironmentManager) CleanupAll(ctx context.Context) CleanupReport {
	m.mu.Lock()
	containers := m.containers
	volumes := m.volumes
	tempDirs := m.tempDirs
	m.containers = nil
	m.volumes = nil
	m.tempDirs = nil
	m.mu.Unlock()

	return m.cleanupResources(ctx, containers, volumes, tempDirs)
}

// CleanupAllAsync runs CleanupAll in a goroutine and delivers the report on
// the returned channel.
func (m *EnvironmentManager) CleanupAllAsync(ctx context.Context) <-chan CleanupReport {
	ch := make(chan CleanupReport, 1)
	go func() {
		ch <- m.CleanupAll(ctx)
		close(ch)
	}()
	return ch
}

// Close reclaims all resources and detaches the manager from the
// process-exit guard.
func (m *EnvironmentManager) Close(ctx context.Context) CleanupReport {
	report := m.CleanupAll(ctx)
	unregisterManager(m)
	return report
}

func (m *EnvironmentManager) cleanupResources(ctx context.Context, containers []ownedContainer, volumes, tempDirs []string) CleanupReport {
	// Best-effort reclaim must finish even if the caller's deadline fired.
	ctx = context.WithoutCancel(ctx)

	var report CleanupReport
	stopTimeout := stopTimeoutSeconds

	for _, c := range containers {
		if err := m.api.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &stopTimeout}); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to remove container: %v", err))
		}
		if err := m.api.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to remove container: %v", err))
			continue
		}
		report.ContainersRemoved = append(report.ContainersRemoved, c.Name)
	}

	for _, name := range volumes {
		if err := m.api.VolumeRemove(ctx, name, true); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to remove volume: %v", err))
			continue
		}
		report.VolumesRemoved = append(report.VolumesRemoved, name)
	}

	for _, dir := range tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to remove temp directory: %v", err))
			continue
		}
		report.TempDirsCleaned++
	}

	return report
}

// Cleanup releases the environment's container, scratch volume, and
// workspace. Idempotent: a second call reports zero removals. Failures are
// collected in the report, never raised.
func (e *Environment) Cleanup(ctx context.Context) CleanupReport {
	e.mu.Lock()
	if e.cleaned {
		e.mu.Unlock()
		return CleanupReport{}
	}
	e.cleaned = true
	e.mu.Unlock()

	return e.manager.releaseEnvironment(ctx, e)
}

// releaseEnvironment takes the environment's resources out of the registries
// (so a later CleanupAll does not double-remove them) and reclaims them.
func (m *EnvironmentManager) releaseEnvironment(ctx context.Context, e *Environment) CleanupReport {
	m.mu.Lock()
	var containers []ownedContainer
	for i, c := range m.containers {
		if c.ID == e.ContainerID {
			containers = append(containers, c)
			m.containers = append(m.containers[:i], m.containers[i+1:]...)
			break
		}
	}
	var volumes []string
	for i, name := range m.volumes {
		if name == e.Volume {
			volumes = append(volumes, name)
			m.volumes = append(m.volumes[:i], m.volumes[i+1:]...)
			break
		}
	}
	var tempDirs []string
	for i, dir := range m.tempDirs {
		if dir == e.Workspace {
			tempDirs = append(tempDirs, dir)
			m.tempDirs = append(m.tempDirs[:i], m.tempDirs[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	return m.cleanupResources(ctx, containers, volumes, tempDirs)
}

func (m *EnvironmentManager) registerContainer(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers = append(m.containers, ownedContainer{ID: id, Name: name})
}

func (m *EnvironmentManager) registerVolume(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes = append(m.volumes, name)
}

func (m *EnvironmentManager) registerTempDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempDirs = append(m.tempDirs, dir)
}

// ensureImage pulls the image if it is not present locally.
func (m *EnvironmentManager) ensureImage(ctx context.Context, ref string) error {
	images, err := m.api.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}
	if len(images) > 0 {
		return nil
	}

	m.log.WithField("image", ref).Info("Pulling image")
	rc, err := m.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pulling image: %w", err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("reading pull output: %w", err)
	}
	return nil
}

// retryPolicyFromConfig builds the provisioner's retry policy from config,
// falling back to defaults for unset fields.
func retryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	policy := DefaultRetryPolicy
	if cfg.Docker.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Docker.Retry.MaxAttempts
	}
	if cfg.Docker.Retry.BaseDelay != "" {
		if d, err := time.ParseDuration(cfg.Docker.Retry.BaseDelay); err == nil {
			policy.BaseDelay = d
		}
	}
	if cfg.Docker.Retry.Multiplier >= 1 {
		policy.Multiplier = cfg.Docker.Retry.Multiplier
	}
	return policy
}

// sanitizeName makes a task instance id safe for use in a container name.
func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '.', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
