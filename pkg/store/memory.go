package store

import (
	"sync"

	"github.com/arfa79/tailscale/pkg/model"
)

// MemoryStore is a non-durable backend, intended for dev runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	nodes []model.ExitNode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() ([]model.ExitNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ExitNode, len(s.nodes))
	copy(out, s.nodes)
	return out, nil
}

func (s *MemoryStore) Save(nodes []model.ExitNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make([]model.ExitNode, len(nodes))
	copy(s.nodes, nodes)
	return nil
}
