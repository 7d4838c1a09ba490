package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/digitalocean/godo"
	"github.com/google/uuid"

	"github.com/arfa79/tailscale/pkg/model"
	"github.com/arfa79/tailscale/pkg/retry"
)

var dropletTags = []string{"tailscale-exit-node", "auto-managed"}

// createDroplet submits one droplet create, waits for the creation action to
// complete and re-fetches the droplet to learn its assigned address. One
// invocation is one attempt of the create retry policy.
func (m *Manager) createDroplet(ctx context.Context) (*godo.Droplet, string, error) {
	name := fmt.Sprintf("%s-%s-%d", m.cfg.NamePrefix, m.placement.Region.Slug, m.now().Unix())

	payload, err := m.generator.Generate(m.cfg.TSAuthKey, m.cfg.LoginServer)
	if err != nil {
		return nil, "", &model.CreateError{Name: name, Err: err}
	}

	req := &godo.DropletCreateRequest{
		Name:     name,
		Region:   m.placement.Region.Slug,
		Size:     m.placement.Size.Slug,
		Image:    godo.DropletCreateImage{ID: m.placement.Image.ID},
		Tags:     dropletTags,
		UserData: payload,
		Backups:  false,
	}

	m.log.Infof("creating droplet %s in %s with image %s", name, req.Region, m.placement.Image.Slug)
	droplet, actionID, err := m.provider.CreateDroplet(ctx, req)
	if err != nil {
		return nil, "", &model.CreateError{Name: name, Err: err}
	}

	if err := m.waitForAction(ctx, actionID); err != nil {
		return nil, "", &model.CreateError{Name: name, Err: err}
	}

	created, err := m.provider.GetDroplet(ctx, droplet.ID)
	if err != nil {
		return nil, "", &model.CreateError{Name: name, Err: err}
	}
	ip, err := created.PublicIPv4()
	if err != nil || ip == "" {
		return nil, "", &model.CreateError{Name: name, Err: fmt.Errorf("droplet %d created but no public IP assigned", created.ID)}
	}

	m.log.Infof("droplet %s created with IP %s", created.Name, ip)
	return created, ip, nil
}

// waitForAction polls the creation action until it completes. A zero action
// id means the provider returned no action link; creation is then assumed
// submitted and the droplet fetch decides success.
func (m *Manager) waitForAction(ctx context.Context, actionID int) error {
	if actionID == 0 {
		m.log.Debug("no creation action id returned, skipping action wait")
		return nil
	}
	for {
		action, err := m.provider.GetAction(ctx, actionID)
		if err != nil {
			return err
		}
		switch action.Status {
		case godo.ActionCompleted:
			return nil
		case "errored":
			return fmt.Errorf("creation action %d errored", actionID)
		}
		timer := time.NewTimer(m.actionPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// waitForReady polls the readiness marker under the wait retry policy.
func (m *Manager) waitForReady(ctx context.Context, ip string) error {
	return retry.Do(ctx, m.waitPolicy, func(ctx context.Context) error {
		return m.prober.WaitCheck(ctx, ip)
	})
}

// provisionNode runs the single-node state machine:
// creating -> awaiting-ready -> health-checking -> tracked or destroyed.
// Any failure after creation destroys the droplet best-effort; the attempt
// yields nil rather than an error so sibling attempts continue.
func (m *Manager) provisionNode(ctx context.Context) *model.ExitNode {
	attempt := uuid.NewString()[:8]

	var droplet *godo.Droplet
	var ip string
	err := retry.Do(ctx, m.createPolicy, func(ctx context.Context) error {
		var cerr error
		droplet, ip, cerr = m.createDroplet(ctx)
		return cerr
	})
	if err != nil {
		m.log.Errorf("provision %s: droplet creation failed: %v", attempt, err)
		m.metrics.provisions.WithLabelValues("failure").Inc()
		return nil
	}

	if err := m.waitForReady(ctx, ip); err != nil {
		m.log.Errorf("provision %s: node %s never became ready: %v", attempt, droplet.Name, err)
		m.destroyDroplet(ctx, droplet.ID, droplet.Name)
		m.metrics.provisions.WithLabelValues("failure").Inc()
		return nil
	}

	status := m.prober.Status(ctx, ip)
	if !status.Reachable {
		m.log.Errorf("provision %s: node %s failed post-provisioning health check", attempt, droplet.Name)
		m.destroyDroplet(ctx, droplet.ID, droplet.Name)
		m.metrics.provisions.WithLabelValues("failure").Inc()
		return nil
	}

	now := m.now()
	node := &model.ExitNode{
		DropletID:   model.DropletIDString(droplet.ID),
		Name:        droplet.Name,
		PublicIP:    ip,
		TailscaleIP: status.TailscaleIP,
		Region:      m.placement.Region.Slug,
		Status:      model.StatusHealthy,
		CreatedAt:   now,
		LastChecked: now,
	}
	m.log.Infof("provision %s: node %s healthy (tailscale ip %s)", attempt, node.Name, node.TailscaleIP)
	m.metrics.provisions.WithLabelValues("success").Inc()
	return node
}

// provisionBatch fans count provisioning attempts onto at most three
// workers. Successes join the tracker in one critical section; failures
// were already logged by their attempt.
func (m *Manager) provisionBatch(ctx context.Context, count int) {
	workers := count
	if workers > maxProvisionWorkers {
		workers = maxProvisionWorkers
	}

	jobs := make(chan struct{}, count)
	for i := 0; i < count; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	var mu sync.Mutex
	var provisioned []*model.ExitNode
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				if node := m.provisionNode(ctx); node != nil {
					mu.Lock()
					provisioned = append(provisioned, node)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	m.tracker.Append(provisioned...)
	m.log.Infof("provisioned %d of %d requested nodes", len(provisioned), count)
}

// destroyDroplet is best effort: failures are logged, never propagated, so
// a stuck destroy cannot wedge the attempt or the cycle.
func (m *Manager) destroyDroplet(ctx context.Context, id int, name string) {
	m.log.Warnf("destroying droplet %s (id %d)", name, id)
	if err := m.provider.DeleteDroplet(ctx, id); err != nil {
		m.log.Errorf("failed to destroy droplet %s (id %d): %v", name, id, err)
		m.metrics.destroys.WithLabelValues("failure").Inc()
		return
	}
	m.log.Infof("destroyed droplet %s (id %d)", name, id)
	m.metrics.destroys.WithLabelValues("success").Inc()
}
