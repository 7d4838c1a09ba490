// Package fleet owns the in-memory list of tracked exit nodes. All
// structural mutation goes through one mutex; field updates happen only on
// the reconciler's cycle goroutine.
package fleet

import (
	"sync"

	"github.com/arfa79/tailscale/pkg/model"
)

// Tracker is the exclusive-access wrapper around the tracked node list.
type Tracker struct {
	mu    sync.Mutex
	nodes []*model.ExitNode
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Reset replaces the tracked list, used when loading persisted state.
func (t *Tracker) Reset(nodes []model.ExitNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = make([]*model.ExitNode, 0, len(nodes))
	for i := range nodes {
		n := nodes[i]
		t.nodes = append(t.nodes, &n)
	}
}

// Append adds freshly provisioned nodes in one critical section.
func (t *Tracker) Append(nodes ...*model.ExitNode) {
	if len(nodes) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = append(t.nodes, nodes...)
}

// RemoveByID drops the listed droplet ids from tracking and returns how
// many entries were removed.
func (t *Tracker) RemoveByID(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.nodes[:0]
	removed := 0
	for _, n := range t.nodes {
		if drop[n.DropletID] {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	t.nodes = kept
	return removed
}

// Nodes returns the current entries. The pointers are shared; only the
// cycle goroutine mutates node fields.
func (t *Tracker) Nodes() []*model.ExitNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*model.ExitNode, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Snapshot returns a deep value copy for persistence and status reporting.
func (t *Tracker) Snapshot() []model.ExitNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ExitNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, *n)
	}
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// CountHealthy reports how many tracked nodes are currently healthy.
func (t *Tracker) CountHealthy() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, n := range t.nodes {
		if n.Status == model.StatusHealthy {
			count++
		}
	}
	return count
}
