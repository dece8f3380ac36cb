package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CorruptRecords.Inc()
	m.CorruptRecords.Inc()
	m.SyncPasses.WithLabelValues("completed").Inc()
	m.SubmitsTotal.WithLabelValues("success").Add(3)
	m.QueueDepth.Set(5)
	m.PersistFailures.Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CorruptRecords))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.SubmitsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.QueueDepth))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestNewNop_IsIsolated(t *testing.T) {
	a := NewNop()
	b := NewNop()

	a.CorruptRecords.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.CorruptRecords))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.CorruptRecords))
}
