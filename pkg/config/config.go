package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/arfa79/tailscale/pkg/model"
)

// DefaultLoginServer is the public Tailscale control plane.
const DefaultLoginServer = "https://controlplane.tailscale.com"

// Config is the process-wide configuration, loaded once at startup and
// immutable afterwards.
type Config struct {
	DOToken     string
	TSAuthKey   string
	LoginServer string
	Region      string
	ImageName   string
	NamePrefix  string

	TargetNodes         int
	MaxNodes            int
	HealthCheckInterval time.Duration

	LogLevel string

	StateBackend    string // file|sqlite|consul|memory
	StateFile       string
	SQLitePath      string
	ConsulAddr      string
	ConsulKeyPrefix string

	InventoryCacheTTL time.Duration
	StatusAddr        string
	ShellsDir         string
}

// FromEnv builds a Config from the environment, loading a .env file first
// when one is present.
//
// Env:
//
//	DO_TOKEN, TS_AUTHKEY, LOGIN_SERVER, DO_REGION, DO_IMAGE, NAME_PREFIX,
//	TARGET_EXIT_NODES, MAX_EXIT_NODES, HEALTH_CHECK_INTERVAL, LOG_LEVEL,
//	STATE_BACKEND, STATE_FILE, SQLITE_PATH, CONSUL_ADDR, CONSUL_KEY_PREFIX,
//	INVENTORY_CACHE_TTL, STATUS_ADDR, SHELLS_DIR
func FromEnv() (*Config, error) {
	_ = loadDotEnv()

	target, err := getenvInt("TARGET_EXIT_NODES", 1)
	if err != nil {
		return nil, err
	}
	maxNodes, err := getenvInt("MAX_EXIT_NODES", 3)
	if err != nil {
		return nil, err
	}
	interval, err := getenvInt("HEALTH_CHECK_INTERVAL", 300)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getenvInt("INVENTORY_CACHE_TTL", 60)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DOToken:             os.Getenv("DO_TOKEN"),
		TSAuthKey:           os.Getenv("TS_AUTHKEY"),
		LoginServer:         getenv("LOGIN_SERVER", DefaultLoginServer),
		Region:              getenv("DO_REGION", "fra1"),
		ImageName:           getenv("DO_IMAGE", "ubuntu-22-04"),
		NamePrefix:          getenv("NAME_PREFIX", "tailscale-exit"),
		TargetNodes:         target,
		MaxNodes:            maxNodes,
		HealthCheckInterval: time.Duration(interval) * time.Second,
		LogLevel:            getenv("LOG_LEVEL", "info"),
		StateBackend:        getenv("STATE_BACKEND", "file"),
		StateFile:           getenv("STATE_FILE", "exit_nodes.json"),
		SQLitePath:          getenv("SQLITE_PATH", "exit_nodes.db"),
		ConsulAddr:          os.Getenv("CONSUL_ADDR"),
		ConsulKeyPrefix:     getenv("CONSUL_KEY_PREFIX", "tailscale-autodeploy/nodes/"),
		InventoryCacheTTL:   time.Duration(cacheTTL) * time.Second,
		StatusAddr:          os.Getenv("STATUS_ADDR"),
		ShellsDir:           getenv("SHELLS_DIR", "shells"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup invariants. Violations are fatal and must
// surface before any provider call is made.
func (c *Config) Validate() error {
	if c.DOToken == "" {
		return model.NewConfigError("DO_TOKEN is required", nil)
	}
	if c.TSAuthKey == "" {
		return model.NewConfigError("TS_AUTHKEY is required", nil)
	}
	if c.TargetNodes < 0 {
		return model.NewConfigError("target node count cannot be negative", nil)
	}
	if c.TargetNodes > c.MaxNodes {
		return model.NewConfigError("target node count cannot exceed max node count", nil)
	}
	if c.HealthCheckInterval <= 0 {
		return model.NewConfigError("health check interval must be positive", nil)
	}
	switch c.StateBackend {
	case "file", "sqlite", "consul", "memory":
	default:
		return model.NewConfigError("unsupported state backend: "+c.StateBackend, nil)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.NewConfigError(fmt.Sprintf("%s must be an integer, got %q", key, v), nil)
	}
	return n, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
