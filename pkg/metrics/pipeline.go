package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records per-item and per-batch pipeline outcomes.
type PipelineMetrics struct {
	itemDuration *prometheus.HistogramVec
	itemOutcome  *prometheus.CounterVec
	batchRuns    prometheus.Counter
	reconcile    *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline metrics on the provided registerer.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	itemDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_item_duration_seconds",
		Help:    "Duration of one product image sync in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	itemOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_item_total",
		Help: "Sync pipeline items by outcome and failure code.",
	}, []string{"outcome", "code"})
	batchRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_batch_runs_total",
		Help: "Completed batch runner invocations.",
	})
	reconcile := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_actions_total",
		Help: "Reconciler actions by kind (orphan_moved, protected, dangling).",
	}, []string{"action"})
	reg.MustRegister(itemDuration, itemOutcome, batchRuns, reconcile)
	return &PipelineMetrics{
		itemDuration: itemDuration,
		itemOutcome:  itemOutcome,
		batchRuns:    batchRuns,
		reconcile:    reconcile,
	}
}

// ObserveItem records one pipeline item outcome.
func (p *PipelineMetrics) ObserveItem(outcome, code string, duration time.Duration) {
	if p == nil || p.itemDuration == nil {
		return
	}
	p.itemDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
	p.itemOutcome.WithLabelValues(normalizeLabel(outcome), normalizeLabel(code)).Inc()
}

// IncBatchRun counts one completed batch runner invocation.
func (p *PipelineMetrics) IncBatchRun() {
	if p == nil || p.batchRuns == nil {
		return
	}
	p.batchRuns.Inc()
}

// IncReconcileAction counts one reconciler action.
func (p *PipelineMetrics) IncReconcileAction(action string) {
	if p == nil || p.reconcile == nil {
		return
	}
	p.reconcile.WithLabelValues(normalizeLabel(action)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
