package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPipelineMetricsCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveItem("synced", "", 250*time.Millisecond)
	m.ObserveItem("failed", "NETWORK_ERROR", time.Second)
	m.ObserveItem("failed", "NETWORK_ERROR", time.Second)
	m.IncBatchRun()
	m.IncReconcileAction("orphan_moved")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.itemOutcome.WithLabelValues("synced", "unknown")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.itemOutcome.WithLabelValues("failed", "NETWORK_ERROR")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchRuns))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconcile.WithLabelValues("orphan_moved")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var p *PipelineMetrics
	p.ObserveItem("synced", "", time.Second)
	p.IncBatchRun()

	var j *JobMetrics
	j.ObserveDuration("trash-purge", time.Second)
	j.IncSuccess("trash-purge")
	j.IncFailure("trash-purge")

	empty := NewPipelineMetrics(nil)
	empty.ObserveItem("synced", "", time.Second)
}
