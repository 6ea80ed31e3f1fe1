package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so wiring metrics stays
// optional.
type Metrics struct {
	loginAttempts     prometheus.Counter
	loginFailures     prometheus.Counter
	pollCycles        prometheus.Counter
	pollCycleDuration prometheus.Histogram
	devicesDiscovered prometheus.Gauge
	accessories       prometheus.Gauge
	reconcileOps      *prometheus.CounterVec
	syncFailures      prometheus.Counter
	commands          *prometheus.CounterVec
}

// NewMetrics creates and registers the bridge collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		loginAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vesync_bridge",
			Name:      "login_attempts_total",
			Help:      "Cloud login attempts, including retries.",
		}),
		loginFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vesync_bridge",
			Name:      "login_failures_total",
			Help:      "Cloud login attempts that failed.",
		}),
		pollCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vesync_bridge",
			Name:      "poll_cycles_total",
			Help:      "Completed discovery/sync cycles.",
		}),
		pollCycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vesync_bridge",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall-clock duration of discovery/sync cycles, including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		devicesDiscovered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vesync_bridge",
			Name:      "devices_discovered",
			Help:      "Devices in the most recent cloud snapshot.",
		}),
		accessories: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vesync_bridge",
			Name:      "accessories_registered",
			Help:      "Accessories currently registered with the host.",
		}),
		reconcileOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vesync_bridge",
			Name:      "reconcile_operations_total",
			Help:      "Reconciliation outcomes by operation.",
		}, []string{"op"}),
		syncFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vesync_bridge",
			Name:      "sync_failures_total",
			Help:      "Per-device sync attempts that failed and were retried.",
		}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vesync_bridge",
			Name:      "commands_total",
			Help:      "Host-issued device commands by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) observeLogin(success bool) {
	if m == nil {
		return
	}
	m.loginAttempts.Inc()
	if !success {
		m.loginFailures.Inc()
	}
}

func (m *Metrics) observeCycle(duration time.Duration, deviceCount int, res ReconcileResult) {
	if m == nil {
		return
	}
	m.pollCycles.Inc()
	m.pollCycleDuration.Observe(duration.Seconds())
	m.devicesDiscovered.Set(float64(deviceCount))
	m.reconcileOps.WithLabelValues("created").Add(float64(res.Created))
	m.reconcileOps.WithLabelValues("updated").Add(float64(res.Updated))
	m.reconcileOps.WithLabelValues("removed").Add(float64(res.Removed))
}

func (m *Metrics) setAccessories(n int) {
	if m == nil {
		return
	}
	m.accessories.Set(float64(n))
}

func (m *Metrics) observeSyncFailure() {
	if m == nil {
		return
	}
	m.syncFailures.Inc()
}

func (m *Metrics) observeCommand(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.commands.WithLabelValues(result).Inc()
}
