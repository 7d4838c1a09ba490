package model

import (
	"errors"
	"fmt"
)

// ErrTemplateMissing marks an absent cloud-init template file.
var ErrTemplateMissing = errors.New("cloud-init template missing")

// ConfigError is fatal at startup: bad credentials, invalid target/max
// relationship, or a region/image/size that cannot be resolved.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return "configuration error: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError with an optional cause.
func NewConfigError(reason string, err error) *ConfigError {
	return &ConfigError{Reason: reason, Err: err}
}

// CreateError is a droplet creation failure. It aborts the single
// provisioning attempt, never the cycle.
type CreateError struct {
	Name string
	Err  error
}

func (e *CreateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("droplet creation failed for %s: %v", e.Name, e.Err)
	}
	return "droplet creation failed for " + e.Name
}

func (e *CreateError) Unwrap() error { return e.Err }

// HealthCheckError means a node's HTTP surface did not report ready.
// It is the retryable error for the readiness wait.
type HealthCheckError struct {
	Target string
	Err    error
}

func (e *HealthCheckError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("health check failed for %s: %v", e.Target, e.Err)
	}
	return "health check failed for " + e.Target
}

func (e *HealthCheckError) Unwrap() error { return e.Err }

// IsHealthCheckError reports whether err is (or wraps) a HealthCheckError.
func IsHealthCheckError(err error) bool {
	var hce *HealthCheckError
	return errors.As(err, &hce)
}
