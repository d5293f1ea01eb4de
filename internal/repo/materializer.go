// Package repo materializes task repositories into workspace directories.
package repo

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mcpbr/mcpbr/internal/task"
)

// Runner executes git commands.
type Runner interface {
	Exec(ctx context.Context, dir string, args ...string) (string, error)
}

// osRunner executes real git commands via exec.CommandContext.
type osRunner struct{}

func (osRunner) Exec(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w\nstderr: %s",
			strings.Join(args, " "), err, stderr.String())
	}

	return stdout.String(), nil
}

// GitMaterializer clones a task's repository into the workspace and checks
// out its base revision.
type GitMaterializer struct {
	// BaseURL is prepended to bare "owner/name" repo references.
	// Default: "https://github.com/"
	BaseURL string

	runner Runner
}

// NewGitMaterializer creates a materializer using the git CLI.
func NewGitMaterializer() *GitMaterializer {
	return &GitMaterializer{BaseURL: "https://github.com/", runner: osRunner{}}
}

// Materialize clones the repository into dir and checks out the base commit.
func (g *GitMaterializer) Materialize(ctx context.Context, t task.Task, dir string) error {
	if t.Repo == "" {
		return fmt.Errorf("task %s has no repository reference", t.InstanceID)
	}

	if _, err := g.runner.Exec(ctx, dir, "clone", "--quiet", g.cloneURL(t.Repo), "."); err != nil {
		return fmt.Errorf("cloning %s: %w", t.Repo, err)
	}

	if t.BaseCommit != "" {
		if _, err := g.runner.Exec(ctx, dir, "checkout", "--quiet", t.BaseCommit); err != nil {
			return fmt.Errorf("checking out %s: %w", t.BaseCommit, err)
		}
	}

	return nil
}

func (g *GitMaterializer) cloneURL(repo string) string {
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@") {
		return repo
	}
	return g.BaseURL + repo
}
