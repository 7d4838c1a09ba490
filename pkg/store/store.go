// Package store persists the fleet snapshot across restarts. Backends share
// one interface so the reconciler does not care whether state lives in a
// JSON file, a sqlite database or Consul KV.
package store

import (
	"fmt"

	"github.com/arfa79/tailscale/pkg/config"
	"github.com/arfa79/tailscale/pkg/model"
)

// Store is the persistence layer for tracked exit nodes. Save replaces the
// whole snapshot; partial writes are not part of the contract.
type Store interface {
	Load() ([]model.ExitNode, error)
	Save(nodes []model.ExitNode) error
}

// Open constructs the backend selected by the configuration.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StateBackend {
	case "file":
		return NewFileStore(cfg.StateFile), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "consul":
		return NewConsulStore(cfg.ConsulAddr, cfg.ConsulKeyPrefix)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.StateBackend)
	}
}
