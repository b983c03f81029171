// Package metrics exposes CoolCache's Prometheus instrumentation: per-
// command counters and latency histograms, plus the connection and
// keyspace gauges an operator dashboard would want.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server registers. A nil *Metrics is
// valid and every method on it is a no-op, so instrumentation stays an
// optional injected dependency.
type Metrics struct {
	reg *prometheus.Registry

	cmdTotal    *prometheus.CounterVec
	cmdDuration *prometheus.HistogramVec
	cmdErrors   *prometheus.CounterVec
	connections prometheus.Gauge
	keyspaceSz  prometheus.Gauge
	replicas    prometheus.Gauge
}

// New builds a fresh registry and registers all CoolCache collectors on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		cmdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coolcache",
			Name:      "commands_total",
			Help:      "Total commands processed, by command name.",
		}, []string{"command"}),
		cmdDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coolcache",
			Name:      "command_duration_seconds",
			Help:      "Command handling latency, by command name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		cmdErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coolcache",
			Name:      "command_errors_total",
			Help:      "Commands that returned a RESP error reply, by command name.",
		}, []string{"command"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coolcache",
			Name:      "connected_clients",
			Help:      "Number of currently open client connections.",
		}),
		keyspaceSz: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coolcache",
			Name:      "keyspace_keys",
			Help:      "Number of live keys in the keyspace.",
		}),
		replicas: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coolcache",
			Name:      "connected_replicas",
			Help:      "Number of replicas currently attached as a leader.",
		}),
	}
	reg.MustRegister(m.cmdTotal, m.cmdDuration, m.cmdErrors, m.connections, m.keyspaceSz, m.replicas)
	return m
}

func (m *Metrics) ObserveCommand(name string, seconds float64, isErr bool) {
	if m == nil {
		return
	}
	m.cmdTotal.WithLabelValues(name).Inc()
	m.cmdDuration.WithLabelValues(name).Observe(seconds)
	if isErr {
		m.cmdErrors.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) SetKeyspaceSize(n int) {
	if m == nil {
		return
	}
	m.keyspaceSz.Set(float64(n))
}

func (m *Metrics) SetReplicas(n int) {
	if m == nil {
		return
	}
	m.replicas.Set(float64(n))
}

// CommandStats returns the per-command call counts accumulated so far,
// summarized into INFO's Commandstats section.
func (m *Metrics) CommandStats() map[string]uint64 {
	if m == nil {
		return nil
	}
	families, err := m.reg.Gather()
	if err != nil {
		return nil
	}
	out := make(map[string]uint64)
	for _, mf := range families {
		if mf.GetName() != "coolcache_commands_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "command" {
					out[label.GetValue()] = uint64(metric.GetCounter().GetValue())
				}
			}
		}
	}
	return out
}

// Handler returns the HTTP handler to mount at the configured metrics
// address's /metrics path.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
