package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reroaring"
)

func TestCollectorWithDB(t *testing.T) {
	c := NewCollector(func(o *Options) { o.Namespace = "test" })
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	db, err := reroaring.Open(t.Context(), reroaring.WithMetricsCollector(c))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(t.Context(), "R.SETBIT", "k", "1", "1")
	require.NoError(t, err)
	_, err = db.Exec(t.Context(), "r.setbit", "k", "2", "1")
	require.NoError(t, err)
	_, err = db.Exec(t.Context(), "R.SETBIT", "k")
	require.Error(t, err)

	assert.InDelta(t, 2, testutil.ToFloat64(c.commands.WithLabelValues("R.SETBIT", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.commands.WithLabelValues("R.SETBIT", "error")), 0)

	n, err := testutil.GatherAndCount(reg, "test_commands_total", "test_command_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCollectorPersistenceMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordSnapshot("save", 1024, time.Millisecond, nil)
	c.RecordSnapshot("save", 0, time.Millisecond, errors.New("boom"))
	c.RecordRecovery(42, time.Millisecond, nil)
	c.RecordRewrite(time.Millisecond, nil)

	assert.InDelta(t, 1024, testutil.ToFloat64(c.snapshotBytes.WithLabelValues("save")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.snapshots.WithLabelValues("save", "error")), 0)
	assert.InDelta(t, 42, testutil.ToFloat64(c.recovered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.rewrites.WithLabelValues("success")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.rewriteLatency))
}
