package dockerenv

import (
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
)

// ContainerSpec describes a container to be provisioned for one task.
type ContainerSpec struct {
	// Image is the image reference to run
	Image string

	// Name is the container name (e.g. "mcpbr-django-12345-a1b2c3d4")
	Name string

	// Cmd is the command and arguments to run
	Cmd []string

	// WorkDir is the working directory inside the container
	WorkDir string

	// Env contains environment variables to set in the container
	Env map[string]string

	// Mounts are volumes and bind mounts attached to the container
	Mounts []mount.Mount

	// Labels are the identifying resource labels (see Labels). All values
	// must be strings.
	Labels map[string]string

	// Network is the network mode ("" uses the engine default)
	Network string
}

// engineConfig translates a ContainerSpec into the engine API's create parameters.
// Env entries are sorted so container configs are deterministic.
func (s ContainerSpec) engineConfig() (*container.Config, *container.HostConfig) {
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	cfg := &container.Config{
		Image:      s.Image,
		Cmd:        s.Cmd,
		WorkingDir: s.WorkDir,
		Env:        env,
		Labels:     s.Labels,
	}

	hostCfg := &container.HostConfig{
		Mounts: s.Mounts,
	}
	if s.Network != "" {
		hostCfg.NetworkMode = container.NetworkMode(s.Network)
	}

	return cfg, hostCfg
}
