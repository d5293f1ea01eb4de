package dockerenv

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/sirupsen/logrus"

	"github.com/mcpbr/mcpbr/internal/config"
)

// ToolInstaller installs the agent's runtime tooling inside a freshly
// provisioned container. It is an external collaborator of the engine.
type ToolInstaller interface {
	Install(ctx context.Context, containerID string) error
}

// noopInstaller is used when the config specifies no install command.
type noopInstaller struct{}

func (noopInstaller) Install(context.Context, string) error { return nil }

// ExecInstaller runs a shell command inside the container via the engine's
// exec API and fails when it exits non-zero.
type ExecInstaller struct {
	api API
	cmd string
	log logrus.FieldLogger

	// pollInterval between exec state checks; shortened in tests
	pollInterval time.Duration
}

// NewExecInstaller creates an installer running the given shell command.
func NewExecInstaller(api API, cmd string, log logrus.FieldLogger) *ExecInstaller {
	return &ExecInstaller{api: api, cmd: cmd, log: log, pollInterval: 250 * time.Millisecond}
}

// Install runs the install command and waits for it to finish.
func (i *ExecInstaller) Install(ctx context.Context, containerID string) error {
	resp, err := i.api.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          []string{"/bin/sh", "-c", i.cmd},
		AttachStdout: false,
		AttachStderr: false,
	})
	if err != nil {
		return fmt.Errorf("creating tool install exec: %w", err)
	}

	if err := i.api.ContainerExecStart(ctx, resp.ID, container.ExecStartOptions{}); err != nil {
		return fmt.Errorf("starting tool install: %w", err)
	}

	for {
		inspect, err := i.api.ContainerExecInspect(ctx, resp.ID)
		if err != nil {
			return fmt.Errorf("inspecting tool install: %w", err)
		}
		if !inspect.Running {
			if inspect.ExitCode != 0 {
				return fmt.Errorf("tool install exited with code %d", inspect.ExitCode)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(i.pollInterval):
		}
	}
}

// installerFromConfig picks the installer for the configured install command.
func installerFromConfig(api API, cfg *config.Config, log logrus.FieldLogger) ToolInstaller {
	if cfg.Docker.InstallCommand == "" {
		return noopInstaller{}
	}
	return NewExecInstaller(api, cfg.Docker.InstallCommand, log)
}
