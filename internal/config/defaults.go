package config

const (
	DefaultImageTemplate  = "ghcr.io/epoch-research/swe-bench.eval.x86_64.%s:latest"
	DefaultFallbackImage  = "python:3.11-slim"
	DefaultTaskTimeout    = "30m"
	DefaultRetentionHours = 1
	DefaultLogLevel       = "info"
)

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		Docker: DockerConfig{
			UsePrebuiltImages: true,
			ImageTemplate:     DefaultImageTemplate,
			FallbackImage:     DefaultFallbackImage,
			Timeout:           DefaultTaskTimeout,
			RetentionHours:    DefaultRetentionHours,
		},
		LogLevel: DefaultLogLevel,
	}
}
