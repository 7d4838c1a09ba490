package cloud

import (
	"context"
	"sync"
	"time"

	"github.com/digitalocean/godo"
	"go.uber.org/zap"
)

// Inventory caches the droplet listing for a configurable TTL so that one
// reconciliation cycle does not hammer the provider API. When a refresh
// fails the previous listing is served, if any.
type Inventory struct {
	provider Provider
	log      *zap.SugaredLogger
	ttl      time.Duration

	mu      sync.Mutex
	cached  []godo.Droplet
	fetched time.Time
}

// NewInventory wraps provider with a TTL droplet cache.
func NewInventory(provider Provider, ttl time.Duration, log *zap.SugaredLogger) *Inventory {
	return &Inventory{provider: provider, ttl: ttl, log: log}
}

// Droplets returns the cached listing, refreshing it when stale or when
// force is set.
func (inv *Inventory) Droplets(ctx context.Context, force bool) ([]godo.Droplet, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	fresh := inv.cached != nil && time.Since(inv.fetched) <= inv.ttl
	if fresh && !force {
		return inv.cached, nil
	}

	droplets, err := inv.provider.ListDroplets(ctx)
	if err != nil {
		if inv.cached != nil {
			inv.log.Errorf("droplet listing failed, serving stale cache (%d droplets): %v", len(inv.cached), err)
			return inv.cached, nil
		}
		return nil, err
	}
	inv.cached = droplets
	inv.fetched = time.Now()
	inv.log.Debugf("refreshed droplet cache: %d droplets", len(droplets))
	return droplets, nil
}

// ByID returns the cached listing keyed by droplet id.
func (inv *Inventory) ByID(ctx context.Context, force bool) (map[int]godo.Droplet, error) {
	droplets, err := inv.Droplets(ctx, force)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]godo.Droplet, len(droplets))
	for _, d := range droplets {
		byID[d.ID] = d
	}
	return byID, nil
}
