// Package manager implements the reconciliation loop: compare the tracked
// fleet against the desired exit-node count, provision shortfall and retire
// nodes that fail their health checks.
package manager

import (
	"time"

	"go.uber.org/zap"

	"github.com/arfa79/tailscale/pkg/cloud"
	"github.com/arfa79/tailscale/pkg/cloudinit"
	"github.com/arfa79/tailscale/pkg/config"
	"github.com/arfa79/tailscale/pkg/fleet"
	"github.com/arfa79/tailscale/pkg/model"
	"github.com/arfa79/tailscale/pkg/probe"
	"github.com/arfa79/tailscale/pkg/retry"
	"github.com/arfa79/tailscale/pkg/store"
)

// maxProvisionWorkers bounds concurrent single-node provisioning attempts.
const maxProvisionWorkers = 3

// Manager reconciles the exit-node fleet each cycle.
type Manager struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	provider  cloud.Provider
	inventory *cloud.Inventory
	placement *cloud.Placement
	prober    probe.Prober
	generator *cloudinit.Generator
	tracker   *fleet.Tracker
	store     store.Store
	metrics   *Metrics

	// Retry schedules and pauses, injectable so tests run fast.
	createPolicy retry.Policy
	waitPolicy   retry.Policy
	actionPoll   time.Duration
	errorPause   time.Duration

	now func() time.Time
}

// New wires a Manager. The placement must already be resolved; resolving it
// is the fatal-at-startup part of configuration.
func New(
	cfg *config.Config,
	log *zap.SugaredLogger,
	provider cloud.Provider,
	placement *cloud.Placement,
	prober probe.Prober,
	generator *cloudinit.Generator,
	st store.Store,
	metrics *Metrics,
) *Manager {
	m := &Manager{
		cfg:       cfg,
		log:       log,
		provider:  provider,
		inventory: cloud.NewInventory(provider, cfg.InventoryCacheTTL, log),
		placement: placement,
		prober:    prober,
		generator: generator,
		tracker:   fleet.NewTracker(),
		store:     st,
		metrics:   metrics,
		// Droplet creation: up to 3 attempts, exponential 5s..60s, any error.
		createPolicy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Exponential(5*time.Second, 60*time.Second),
			Notify: func(err error, attempt int, delay time.Duration) {
				log.Warnf("droplet creation attempt %d failed, retrying in %s: %v", attempt, delay, err)
			},
		},
		// Readiness wait: 10 attempts at a fixed 30s, about 5 minutes total.
		waitPolicy: retry.Policy{
			MaxAttempts: 10,
			Backoff:     retry.Fixed(30 * time.Second),
			RetryIf:     model.IsHealthCheckError,
			Notify: func(err error, attempt int, delay time.Duration) {
				log.Infof("node not ready yet (attempt %d), next check in %s: %v", attempt, delay, err)
			},
		},
		actionPoll: 10 * time.Second,
		errorPause: 60 * time.Second,
		now:        func() time.Time { return time.Now().UTC() },
	}
	return m
}

// LoadState seeds the tracker from the durable store. A load failure is a
// warning, not a crash: the fleet starts empty and reconverges.
func (m *Manager) LoadState() {
	nodes, err := m.store.Load()
	if err != nil {
		m.log.Warnf("failed to load fleet state, starting with empty fleet: %v", err)
		return
	}
	m.tracker.Reset(nodes)
	m.log.Infof("loaded %d tracked exit nodes", len(nodes))
}

// Tracker exposes the fleet list for status reporting.
func (m *Manager) Tracker() *fleet.Tracker {
	return m.tracker
}

func (m *Manager) persist() {
	snapshot := m.tracker.Snapshot()
	if err := m.store.Save(snapshot); err != nil {
		m.log.Errorf("failed to save fleet state: %v", err)
		return
	}
	m.log.Debugf("saved %d exit nodes", len(snapshot))
}
