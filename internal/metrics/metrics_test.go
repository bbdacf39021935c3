package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serverhub/internal/domain"
)

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SnapshotApplied(3)
	m.SnapshotApplied(2)
	m.DecodeError()
	m.Reconnect()
	m.CommandDone(domain.ActionStart, domain.OutcomeSucceeded, 20*time.Millisecond)
	m.CommandDone(domain.ActionStart, domain.OutcomeFailed, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.snapshotsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rosterServers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnectsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("start", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("start", "failed")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "serverhub_stream_snapshots_total")
	assert.Contains(t, names, "serverhub_command_duration_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SnapshotApplied(1)
		m.RosterSize(1)
		m.DecodeError()
		m.Reconnect()
		m.CommandDone(domain.ActionDelete, domain.OutcomeFailed, time.Second)
	})
}

func TestUnregisteredMetrics(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil).SnapshotApplied(1)
	})
}
