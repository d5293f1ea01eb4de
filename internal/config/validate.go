package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error

	if cfg.Docker.UsePrebuiltImages && !strings.Contains(cfg.Docker.ImageTemplate, "%s") {
		errs = append(errs, &ValidationError{
			Field:   "docker.image_template",
			Value:   cfg.Docker.ImageTemplate,
			Message: "must contain %s placeholder when use_prebuilt_images is set",
		})
	}

	if !cfg.Docker.UsePrebuiltImages && cfg.Docker.FallbackImage == "" {
		errs = append(errs, &ValidationError{
			Field:   "docker.fallback_image",
			Value:   cfg.Docker.FallbackImage,
			Message: "must be set when use_prebuilt_images is disabled",
		})
	}

	if _, err := time.ParseDuration(cfg.Docker.Timeout); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "docker.timeout",
			Value:   cfg.Docker.Timeout,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}

	if cfg.Docker.RetentionHours < 0 {
		errs = append(errs, &ValidationError{
			Field:   "docker.retention_hours",
			Value:   cfg.Docker.RetentionHours,
			Message: "must be non-negative",
		})
	}

	if cfg.Docker.Retry.MaxAttempts < 0 {
		errs = append(errs, &ValidationError{
			Field:   "docker.retry.max_attempts",
			Value:   cfg.Docker.Retry.MaxAttempts,
			Message: "must be non-negative (0 = default)",
		})
	}

	if cfg.Docker.Retry.BaseDelay != "" {
		if _, err := time.ParseDuration(cfg.Docker.Retry.BaseDelay); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "docker.retry.base_delay",
				Value:   cfg.Docker.Retry.BaseDelay,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		}
	}

	if cfg.Docker.Retry.Multiplier != 0 && cfg.Docker.Retry.Multiplier < 1 {
		errs = append(errs, &ValidationError{
			Field:   "docker.retry.multiplier",
			Value:   cfg.Docker.Retry.Multiplier,
			Message: "must be at least 1 (0 = default)",
		})
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, &ValidationError{
			Field:   "log_level",
			Value:   cfg.LogLevel,
			Message: "must be one of: debug, info, warn, error",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
