package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arfa79/tailscale/pkg/model"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DO_TOKEN", "do-token")
	t.Setenv("TS_AUTHKEY", "tskey-test")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultLoginServer, cfg.LoginServer)
	assert.Equal(t, "fra1", cfg.Region)
	assert.Equal(t, "ubuntu-22-04", cfg.ImageName)
	assert.Equal(t, "tailscale-exit", cfg.NamePrefix)
	assert.Equal(t, 1, cfg.TargetNodes)
	assert.Equal(t, 3, cfg.MaxNodes)
	assert.Equal(t, 300*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, "file", cfg.StateBackend)
	assert.Equal(t, "exit_nodes.json", cfg.StateFile)
	assert.Equal(t, 60*time.Second, cfg.InventoryCacheTTL)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DO_REGION", "nyc3")
	t.Setenv("TARGET_EXIT_NODES", "2")
	t.Setenv("MAX_EXIT_NODES", "5")
	t.Setenv("HEALTH_CHECK_INTERVAL", "30")
	t.Setenv("STATE_BACKEND", "sqlite")
	t.Setenv("INVENTORY_CACHE_TTL", "15")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "nyc3", cfg.Region)
	assert.Equal(t, 2, cfg.TargetNodes)
	assert.Equal(t, 5, cfg.MaxNodes)
	assert.Equal(t, 30*time.Second, cfg.HealthCheckInterval)
	assert.Equal(t, "sqlite", cfg.StateBackend)
	assert.Equal(t, 15*time.Second, cfg.InventoryCacheTTL)
}

func TestValidateMissingToken(t *testing.T) {
	t.Setenv("DO_TOKEN", "")
	t.Setenv("TS_AUTHKEY", "tskey-test")

	_, err := FromEnv()
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestValidateMissingAuthKey(t *testing.T) {
	t.Setenv("DO_TOKEN", "do-token")
	t.Setenv("TS_AUTHKEY", "")

	_, err := FromEnv()
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestValidateTargetExceedsMax(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_EXIT_NODES", "4")
	t.Setenv("MAX_EXIT_NODES", "3")

	_, err := FromEnv()
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestValidateBadBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STATE_BACKEND", "etcd")

	_, err := FromEnv()
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
}

func TestMalformedIntEnvIsFatal(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TARGET_EXIT_NODES", "not-a-number")

	_, err := FromEnv()
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "TARGET_EXIT_NODES")
}
