package manager

import (
	"context"
	"fmt"
	"time"
)

// RunCycle performs one reconciliation pass: health-check tracked nodes,
// retire failures, provision shortfall, persist state. Health check and
// cleanup always complete before provisioning decisions, so one cycle never
// both creates and destroys from stale counts.
func (m *Manager) RunCycle(ctx context.Context) error {
	healthy, err := m.checkExisting(ctx)
	if err != nil {
		return err
	}
	m.log.Infof("found %d healthy nodes out of %d tracked", len(healthy), m.tracker.Len())

	m.cleanup(ctx)

	healthyCount := m.tracker.CountHealthy()
	needed := m.cfg.TargetNodes - healthyCount
	if needed <= 0 {
		m.log.Info("target node count reached, no provisioning needed")
	} else {
		tracked := m.tracker.Len()
		switch {
		case tracked+needed <= m.cfg.MaxNodes:
			m.log.Infof("need %d more nodes to reach target of %d", needed, m.cfg.TargetNodes)
			m.provisionBatch(ctx, needed)
		case m.cfg.MaxNodes > tracked:
			clamped := m.cfg.MaxNodes - tracked
			m.log.Warnf("would need %d nodes but limited by max of %d, creating %d", needed, m.cfg.MaxNodes, clamped)
			m.provisionBatch(ctx, clamped)
		default:
			m.log.Warnf("cannot create more nodes: already at max node limit (%d)", m.cfg.MaxNodes)
		}
	}

	m.persist()

	m.metrics.tracked.Set(float64(m.tracker.Len()))
	m.metrics.healthy.Set(float64(m.tracker.CountHealthy()))
	return nil
}

// cycle runs RunCycle with panic containment, so a collaborator bug pauses
// the loop like any other cycle error instead of crashing the daemon.
func (m *Manager) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return m.RunCycle(ctx)
}

// Run loops RunCycle until ctx is cancelled. A cycle error or panic is
// logged and followed by a fixed pause; the loop itself never terminates on
// one. In-flight provisioning attempts finish before a cycle returns, so
// shutdown waits for them by construction.
func (m *Manager) Run(ctx context.Context) {
	m.log.Infof("starting exit node manager: target=%d max=%d interval=%s",
		m.cfg.TargetNodes, m.cfg.MaxNodes, m.cfg.HealthCheckInterval)

	for {
		if ctx.Err() != nil {
			break
		}
		m.log.Info("starting management cycle")
		start := time.Now()
		err := m.cycle(ctx)
		m.metrics.cycleDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			m.metrics.cycleErrors.Inc()
			m.log.Errorf("management cycle failed: %v", err)
			m.log.Infof("pausing %s before next cycle", m.errorPause)
			if !sleepCtx(ctx, m.errorPause) {
				break
			}
			continue
		}
		m.log.Infof("management cycle complete, sleeping for %s", m.cfg.HealthCheckInterval)
		if !sleepCtx(ctx, m.cfg.HealthCheckInterval) {
			break
		}
	}
	m.log.Info("shutdown complete")
}

// sleepCtx waits d, returning false immediately when ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
