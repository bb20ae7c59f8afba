// Package metrics registers the terminal's Prometheus collectors:
//
//	cyptoterm_frames_received_total
//	cyptoterm_frames_dropped_total{reason}
//	cyptoterm_snapshots_applied_total
//	cyptoterm_reconnects_total
//	cyptoterm_connected
//	cyptoterm_commands_total{result}
//	cyptoterm_verdict_publishes_total{sink}
//	go_* and process_* system metrics
//
// Collectors live on a private registry so tests can build independent
// instances.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cyptoterm"

// Metrics implements feed.Recorder and store.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	framesReceived   prometheus.Counter
	framesDropped    *prometheus.CounterVec
	snapshotsApplied prometheus.Counter
	reconnects       prometheus.Counter
	connected        prometheus.Gauge
	commands         *prometheus.CounterVec
	publishes        *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames read from the market stream.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames discarded before reaching the store.",
		}, []string{"reason"}),
		snapshotsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_applied_total",
			Help:      "Snapshots that replaced the current market state.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled after a lost connection.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the market stream is connected.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Control commands by outcome.",
		}, []string{"result"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdict_publishes_total",
			Help:      "Verdict writes to external sinks.",
		}, []string{"sink"}),
	}

	m.reg.MustRegister(
		m.framesReceived,
		m.framesDropped,
		m.snapshotsApplied,
		m.reconnects,
		m.connected,
		m.commands,
		m.publishes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameReceived() { m.framesReceived.Inc() }

func (m *Metrics) Reconnecting() { m.reconnects.Inc() }

func (m *Metrics) SetConnected(up bool) {
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

func (m *Metrics) CommandSent() { m.commands.WithLabelValues("sent").Inc() }

func (m *Metrics) CommandDropped() { m.commands.WithLabelValues("dropped").Inc() }

func (m *Metrics) SnapshotApplied() { m.snapshotsApplied.Inc() }

func (m *Metrics) FrameDropped(reason string) { m.framesDropped.WithLabelValues(reason).Inc() }

// VerdictPublished counts a write to sink (e.g. "redis").
func (m *Metrics) VerdictPublished(sink string) { m.publishes.WithLabelValues(sink).Inc() }
