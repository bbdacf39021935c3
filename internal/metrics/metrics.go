// Package metrics exposes Prometheus collectors for the roster stream and
// lifecycle commands.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"serverhub/internal/domain"
)

const namespace = "serverhub"

type Metrics struct {
	snapshotsTotal    prometheus.Counter
	decodeErrorsTotal prometheus.Counter
	reconnectsTotal   prometheus.Counter
	rosterServers     prometheus.Gauge
	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg yields unregistered
// collectors, which is what one-shot CLI commands use.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		snapshotsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "snapshots_total",
			Help:      "Roster snapshots applied from the status stream.",
		}),
		decodeErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "decode_errors_total",
			Help:      "Status stream payloads or roster entries dropped because they could not be decoded.",
		}),
		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Status stream reconnect attempts.",
		}),
		rosterServers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "roster",
			Name:      "servers",
			Help:      "Server instances in the current roster.",
		}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Lifecycle commands sent to the gateway.",
		}, []string{"action", "outcome"}),
		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Lifecycle command round trip time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
	}
}

// The methods below tolerate a nil receiver so components can run without
// metrics.

func (m *Metrics) SnapshotApplied(size int) {
	if m == nil {
		return
	}
	m.snapshotsTotal.Inc()
	m.rosterServers.Set(float64(size))
}

func (m *Metrics) RosterSize(size int) {
	if m == nil {
		return
	}
	m.rosterServers.Set(float64(size))
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrorsTotal.Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

func (m *Metrics) CommandDone(action domain.Action, outcome domain.Outcome, took time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(string(action), string(outcome)).Inc()
	m.commandDuration.WithLabelValues(string(action)).Observe(took.Seconds())
}
