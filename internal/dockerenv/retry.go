package dockerenv

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/sirupsen/logrus"
)

// RetryPolicy controls retry behavior for container creation.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts (initial + retries)
	MaxAttempts int

	// BaseDelay is the backoff before the first retry
	BaseDelay time.Duration

	// Multiplier is the factor applied to the backoff after each attempt
	Multiplier float64
}

// DefaultRetryPolicy retries transient engine failures three times beyond the
// initial attempt, backing off 1s, 2s, 4s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	BaseDelay:   1 * time.Second,
	Multiplier:  2.0,
}

// Provisioner creates containers against the engine API, retrying transient
// server-side failures with exponential backoff. Client-class errors and
// non-engine errors fail fast with exactly one attempt.
type Provisioner struct {
	api    API
	log    logrus.FieldLogger
	policy RetryPolicy

	// sleep waits for the backoff delay or until ctx is done. Replaceable
	// in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProvisioner creates a Provisioner with the default retry policy.
func NewProvisioner(api API, log logrus.FieldLogger) *Provisioner {
	return NewProvisionerWithPolicy(api, log, DefaultRetryPolicy)
}

// NewProvisionerWithPolicy creates a Provisioner with a custom retry policy.
func NewProvisionerWithPolicy(api API, log logrus.FieldLogger, policy RetryPolicy) *Provisioner {
	return &Provisioner{
		api:    api,
		log:    log,
		policy: policy,
		sleep:  sleepContext,
	}
}

// Create provisions and starts a container for the given spec, returning the
// container id. The first-attempt success path incurs no delay. The backoff
// blocks only the calling goroutine, so concurrent provisions proceed
// unaffected.
func (p *Provisioner) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	cfg, hostCfg := spec.engineConfig()

	delay := p.policy.BaseDelay
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		id, err := p.createAndStart(ctx, cfg, hostCfg, spec.Name)
		if err == nil {
			return id, nil
		}

		class, status := classify(err)
		p.log.WithFields(logrus.Fields{
			"container": spec.Name,
			"attempt":   attempt,
			"status":    status,
		}).WithError(err).Warn("Container creation attempt failed")

		switch class {
		case classPermanent:
			return "", fmt.Errorf("container create failed (status %d): %w", status, err)
		case classTransient:
			lastErr = err
			lastStatus = status
		default:
			return "", fmt.Errorf("container create failed: %w", err)
		}

		if attempt < p.policy.MaxAttempts {
			if err := p.sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("container create interrupted: %w", err)
			}
			delay = time.Duration(float64(delay) * p.policy.Multiplier)
		}
	}

	return "", fmt.Errorf("container create failed after %d attempts (status %d): %w",
		p.policy.MaxAttempts, lastStatus, lastErr)
}

// createAndStart is one provisioning attempt. A container created but not
// started is removed before the error is returned so a retry never leaks the
// half-provisioned container.
func (p *Provisioner) createAndStart(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, name string) (string, error) {
	resp, err := p.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", err
	}

	if err := p.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		if rmErr := p.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			p.log.WithError(rmErr).WithField("container", name).
				Warn("Failed to remove container after start failure")
		}
		return "", err
	}

	return resp.ID, nil
}

// sleepContext blocks for d or until ctx is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
