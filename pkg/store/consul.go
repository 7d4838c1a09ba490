package store

import (
	"encoding/json"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/arfa79/tailscale/pkg/model"
)

// ConsulStore keeps one KV pair per tracked node under a key prefix, so the
// fleet survives host loss when a Consul cluster is available.
type ConsulStore struct {
	cli    *consulapi.Client
	prefix string
}

func NewConsulStore(addr, prefix string) (*ConsulStore, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &ConsulStore{cli: cli, prefix: prefix}, nil
}

func (s *ConsulStore) Load() ([]model.ExitNode, error) {
	pairs, _, err := s.cli.KV().List(s.prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("consul list %s: %w", s.prefix, err)
	}
	var nodes []model.ExitNode
	for _, p := range pairs {
		var n model.ExitNode
		if err := json.Unmarshal(p.Value, &n); err != nil {
			return nil, fmt.Errorf("consul decode %s: %w", p.Key, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Save replaces the prefix contents with the given snapshot.
func (s *ConsulStore) Save(nodes []model.ExitNode) error {
	if _, err := s.cli.KV().DeleteTree(s.prefix, nil); err != nil {
		return fmt.Errorf("consul clear %s: %w", s.prefix, err)
	}
	for _, n := range nodes {
		b, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("consul encode %s: %w", n.DropletID, err)
		}
		pair := &consulapi.KVPair{Key: s.prefix + n.DropletID, Value: b}
		if _, err := s.cli.KV().Put(pair, nil); err != nil {
			return fmt.Errorf("consul put %s: %w", pair.Key, err)
		}
	}
	return nil
}
