package manager

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the reconciler's Prometheus series on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	tracked       prometheus.Gauge
	healthy       prometheus.Gauge
	provisions    *prometheus.CounterVec
	destroys      *prometheus.CounterVec
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autodeploy_fleet_tracked",
			Help: "Number of tracked exit nodes.",
		}),
		healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autodeploy_fleet_healthy",
			Help: "Number of tracked exit nodes currently healthy.",
		}),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autodeploy_provision_total",
			Help: "Single-node provisioning attempts by result.",
		}, []string{"result"}),
		destroys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autodeploy_destroy_total",
			Help: "Droplet destroy calls by result.",
		}, []string{"result"}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autodeploy_cycle_errors_total",
			Help: "Reconciliation cycles aborted by an unhandled error.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autodeploy_cycle_duration_seconds",
			Help:    "Wall time of one reconciliation cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	m.registry.MustRegister(m.tracked, m.healthy, m.provisions, m.destroys, m.cycleErrors, m.cycleDuration)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
