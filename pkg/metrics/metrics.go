// Package metrics provides the optional Prometheus instrumentation
// gated behind the net-stats configuration toggle. Disabled by default:
// IsEnabled reports false and every Metrics accessor is a no-op until
// InitRegistry is called, matching the teacher's "zero overhead when
// disabled" convention for its own Prometheus-backed metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
	metrics  *Metrics
)

// Metrics holds the counters and gauges the Service updates when
// net-stats is enabled.
type Metrics struct {
	PacketsSent     prometheus.Counter
	PacketsReceived prometheus.Counter
	SendsDropped    prometheus.Counter
	Dispatches      *prometheus.CounterVec
	TableSize       prometheus.Gauge
}

// InitRegistry enables metrics collection and builds the counter/gauge
// set. Safe to call more than once; later calls are no-ops.
func InitRegistry() *Metrics {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return metrics
	}

	registry = prometheus.NewRegistry()
	metrics = &Metrics{
		PacketsSent: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "tcapd_packets_sent_total",
			Help: "Total UDP packets sent by the sender task.",
		}),
		PacketsReceived: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "tcapd_packets_received_total",
			Help: "Total UDP datagrams read by the receiver task.",
		}),
		SendsDropped: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "tcapd_sends_dropped_total",
			Help: "Total outgoing packets dropped due to send errors or a full queue.",
		}),
		Dispatches: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "tcapd_dispatches_total",
			Help: "Total unsolicited packets dispatched, by opcode.",
		}, []string{"opcode"}),
		TableSize: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "tcapd_capability_table_size",
			Help: "Current number of entries in the capability table.",
		}),
	}
	return metrics
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the Prometheus registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Get returns the current Metrics, or nil if metrics are disabled.
// Callers must nil-check before use; every field access is guarded the
// same way the teacher's metrics constructors guard on IsEnabled().
func Get() *Metrics {
	mu.RLock()
	defer mu.RUnlock()
	return metrics
}
