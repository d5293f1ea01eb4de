package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds mcpbr engine configuration loaded from mcpbr.yaml.
type Config struct {
	// Docker controls the task execution environment
	Docker DockerConfig `yaml:"docker"`

	// LogLevel is one of: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// DockerConfig controls container provisioning and cleanup.
type DockerConfig struct {
	// UsePrebuiltImages selects per-instance prebuilt evaluation images
	// instead of the fallback image
	UsePrebuiltImages bool `yaml:"use_prebuilt_images"`

	// ImageTemplate is the prebuilt image reference template; %s is
	// replaced with the task instance id
	ImageTemplate string `yaml:"image_template"`

	// FallbackImage is used when prebuilt images are disabled
	FallbackImage string `yaml:"fallback_image"`

	// Timeout bounds one task's execution (Go duration string)
	Timeout string `yaml:"timeout"`

	// RetentionHours is the minimum age before the cleanup scanner removes
	// an orphaned resource
	RetentionHours int `yaml:"retention_hours"`

	// ScratchVolume attaches a per-task scratch volume to each environment
	ScratchVolume bool `yaml:"scratch_volume"`

	// WorkspaceRoot is where task workspaces are allocated ("" uses the
	// system temp directory)
	WorkspaceRoot string `yaml:"workspace_root"`

	// InstallCommand is the shell command run inside each container to
	// install the agent tooling ("" skips installation)
	InstallCommand string `yaml:"install_command"`

	// Network is the container network mode ("" uses the engine default)
	Network string `yaml:"network"`

	// Retry overrides the container-creation retry policy
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig overrides the container-creation retry policy. Zero values
// keep the defaults (4 attempts, 1s base delay, x2 backoff).
type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelay   string  `yaml:"base_delay"`
	Multiplier  float64 `yaml:"multiplier"`
}

// ImageForInstance resolves the image reference for a task instance per the
// image-selection policy.
func (c *Config) ImageForInstance(instanceID string) string {
	if c.Docker.UsePrebuiltImages {
		return fmt.Sprintf(c.Docker.ImageTemplate, strings.ToLower(instanceID))
	}
	return c.Docker.FallbackImage
}

// TaskTimeout parses the configured task timeout.
func (c *Config) TaskTimeout() time.Duration {
	d, err := time.ParseDuration(c.Docker.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// LoadConfig loads configuration from <dir>/mcpbr.yaml, applies environment
// overrides, and validates. A missing file yields the defaults.
func LoadConfig(dir string) (*Config, error) {
	return LoadConfigFromPath(filepath.Join(dir, "mcpbr.yaml"))
}

// LoadConfigFromPath loads configuration from a specific path. `${VAR}`
// references in the file are expanded from the environment before parsing.
func LoadConfigFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
