package manager

import (
	"context"
	"fmt"

	"github.com/digitalocean/godo"

	"github.com/arfa79/tailscale/pkg/model"
)

// checkExisting evaluates every tracked node against the provider inventory
// and its HTTP surface, updating statuses in place. Nodes that vanished from
// the provider are removed from tracking (nothing left to destroy). The
// healthy subset is returned.
func (m *Manager) checkExisting(ctx context.Context) ([]*model.ExitNode, error) {
	byID, err := m.inventory.ByID(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("fetch droplet inventory: %w", err)
	}

	var healthy []*model.ExitNode
	var vanishedIDs []string
	for _, node := range m.tracker.Nodes() {
		vanished, ok := m.checkNode(ctx, node, byID)
		if vanished {
			vanishedIDs = append(vanishedIDs, node.DropletID)
			continue
		}
		if ok {
			healthy = append(healthy, node)
		}
	}

	if removed := m.tracker.RemoveByID(vanishedIDs...); removed > 0 {
		m.log.Infof("removed %d vanished nodes from tracking", removed)
	}
	return healthy, nil
}

// checkNode evaluates one tracked node. A panic during the check marks the
// node errored instead of aborting the pass.
func (m *Manager) checkNode(ctx context.Context, node *model.ExitNode, byID map[int]godo.Droplet) (vanished, healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("health check for node %s panicked, marking error: %v", node.Name, r)
			node.Status = model.StatusError
			vanished, healthy = false, false
		}
	}()

	id, err := node.DropletIDInt()
	if err != nil {
		m.log.Errorf("node %s has malformed droplet id %q, marking error: %v", node.Name, node.DropletID, err)
		node.Status = model.StatusError
		return false, false
	}

	droplet, ok := byID[id]
	if !ok {
		m.log.Warnf("node %s (id %s) tracked but not found at DigitalOcean, removing from tracking", node.Name, node.DropletID)
		return true, false
	}

	if droplet.Status != "active" {
		node.Status = model.StatusUnhealthy
		m.log.Warnf("node %s exists but droplet status is %q, marked unhealthy", node.Name, droplet.Status)
		return false, false
	}

	ip, err := droplet.PublicIPv4()
	if err != nil || ip == "" {
		m.log.Errorf("node %s has no usable public IP, marking error: %v", node.Name, err)
		node.Status = model.StatusError
		return false, false
	}

	status := m.prober.Status(ctx, ip)
	node.LastChecked = m.now()
	if !status.Reachable {
		node.Status = model.StatusUnhealthy
		m.log.Warnf("node %s health check failed", node.Name)
		return false, false
	}

	node.Status = model.StatusHealthy
	if status.TailscaleIP != "" {
		node.TailscaleIP = status.TailscaleIP
	}
	m.log.Debugf("node %s health check passed", node.Name)
	return false, true
}

// cleanup destroys and untracks every node left unhealthy or errored by the
// health pass. The entry is removed even when the destroy fails, so a dead
// droplet can never wedge the tracked list.
func (m *Manager) cleanup(ctx context.Context) {
	var retired []string
	for _, node := range m.tracker.Nodes() {
		if !node.Status.NeedsCleanup() {
			continue
		}
		m.log.Warnf("node %s (id %s) is %s, retiring", node.Name, node.DropletID, node.Status)
		if id, err := node.DropletIDInt(); err == nil {
			m.destroyDroplet(ctx, id, node.Name)
		} else {
			m.log.Errorf("cannot destroy node %s, malformed droplet id %q: %v", node.Name, node.DropletID, err)
		}
		retired = append(retired, node.DropletID)
	}
	if removed := m.tracker.RemoveByID(retired...); removed > 0 {
		m.log.Infof("removed %d failed nodes from tracking", removed)
	}
}
