package config

import (
	"os"
	"regexp"
	"strconv"
)

// envOverrides maps environment variables to config field setters.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{
		envVar: "MCPBR_FALLBACK_IMAGE",
		apply: func(c *Config, v string) {
			c.Docker.FallbackImage = v
		},
	},
	{
		envVar: "MCPBR_TIMEOUT",
		apply: func(c *Config, v string) {
			c.Docker.Timeout = v
		},
	},
	{
		envVar: "MCPBR_RETENTION_HOURS",
		apply: func(c *Config, v string) {
			if n, err := strconv.Atoi(v); err == nil {
				c.Docker.RetentionHours = n
			}
		},
	},
	{
		envVar: "MCPBR_LOG_LEVEL",
		apply: func(c *Config, v string) {
			c.LogLevel = v
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values. Unset
// variables expand to the empty string. Only the braced form is recognized
// so bare dollar signs in config values survive intact.
func expandEnv(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := envRefPattern.FindStringSubmatch(ref)[1]
		return os.Getenv(name)
	})
}
