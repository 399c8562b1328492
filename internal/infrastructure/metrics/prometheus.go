package metrics

import (
	"time"

	"github.com/camarize/reconciler/internal/services/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camarize_reconciler"

// PrometheusExporter exports reconciliation metrics to Prometheus format.
// Metrics are registered on the registerer passed in, never the global one.
type PrometheusExporter struct {
	collector *Collector

	// Run metrics
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastRunSuccess  prometheus.Gauge
	recordsExamined *prometheus.CounterVec
	recordsDangling *prometheus.CounterVec
	recordsRemoved  *prometheus.CounterVec
	recordErrors    *prometheus.CounterVec
	relationAborted *prometheus.CounterVec
	anomalies       *prometheus.CounterVec

	// Store and cache metrics
	storeOps       *prometheus.CounterVec
	storeErrors    *prometheus.CounterVec
	storeDuration  *prometheus.HistogramVec
	cacheHitRate   prometheus.Gauge
	cacheKeys      prometheus.Gauge
	cacheEvictions prometheus.Gauge
}

var _ reconcile.Recorder = (*PrometheusExporter)(nil)

// NewPrometheusExporter creates a new Prometheus exporter registering on reg.
func NewPrometheusExporter(collector *Collector, reg prometheus.Registerer) *PrometheusExporter {
	factory := promauto.With(reg)
	return &PrometheusExporter{
		collector: collector,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs by outcome",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		lastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last run that connected to the store",
		}),
		recordsExamined: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_examined_total",
			Help:      "Relation records examined",
		}, []string{"relation"}),
		recordsDangling: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dangling_total",
			Help:      "Relation records found with a missing endpoint",
		}, []string{"relation"}),
		recordsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_removed_total",
			Help:      "Dangling relation records removed",
		}, []string{"relation"}),
		recordErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_errors_total",
			Help:      "Relation records whose verification or deletion failed",
		}, []string{"relation", "stage"}),
		relationAborted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relation_aborted_total",
			Help:      "Relation type sweeps stopped by a page read failure",
		}, []string{"relation"}),
		anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomaly findings reported",
		}, []string{"expectation"}),
		storeOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Entity store operations",
		}, []string{"operation"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operation_errors_total",
			Help:      "Failed entity store operations",
		}, []string{"operation"}),
		storeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of entity store operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"operation"}),
		cacheHitRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "existence_cache_hit_rate",
			Help:      "Current existence cache hit rate (0.0 to 1.0)",
		}),
		cacheKeys: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "existence_cache_keys_current",
			Help:      "Current number of keys in the existence cache",
		}),
		cacheEvictions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "existence_cache_evictions",
			Help:      "Keys evicted from the existence cache since start",
		}),
	}
}

// RecordRun adds the outcome of a completed run.
func (e *PrometheusExporter) RecordRun(s *reconcile.Summary) {
	outcome := "completed"
	if s.Cancelled {
		outcome = "cancelled"
	}
	e.runs.WithLabelValues(outcome).Inc()
	e.runDuration.Observe(s.Duration().Seconds())
	e.lastRunSuccess.Set(float64(s.FinishedAt.Unix()))

	for _, r := range s.Relations {
		e.recordsExamined.WithLabelValues(r.Relation).Add(float64(r.Examined))
		e.recordsDangling.WithLabelValues(r.Relation).Add(float64(r.Dangling))
		e.recordsRemoved.WithLabelValues(r.Relation).Add(float64(r.Removed))
		e.recordErrors.WithLabelValues(r.Relation, "verify").Add(float64(r.VerifyErrors))
		e.recordErrors.WithLabelValues(r.Relation, "delete").Add(float64(r.DeleteErrors))
		if r.Aborted != "" {
			e.relationAborted.WithLabelValues(r.Relation).Inc()
		}
	}
	for _, a := range s.Anomalies {
		e.anomalies.WithLabelValues(a.Expectation).Inc()
	}

	e.Update()
}

// RecordRunFailure counts a run that could not connect to the store.
func (e *PrometheusExporter) RecordRunFailure() {
	e.runs.WithLabelValues("failed").Inc()
}

// Observe records one store operation.
func (e *PrometheusExporter) Observe(op string, d time.Duration, err error) {
	e.storeOps.WithLabelValues(op).Inc()
	e.storeDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		e.storeErrors.WithLabelValues(op).Inc()
	}
}

// Update refreshes gauges from the collector.
func (e *PrometheusExporter) Update() {
	if e.collector == nil {
		return
	}
	cm := e.collector.GetCacheMetrics()
	e.cacheHitRate.Set(cm.HitRate)
	e.cacheKeys.Set(float64(cm.KeysCurrent))
	e.cacheEvictions.Set(float64(cm.Evictions))
}
