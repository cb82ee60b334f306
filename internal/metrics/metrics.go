// Package metrics provides Prometheus metrics for the lake ingestor.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the ingestor.
type Metrics struct {
	FilesProcessed *prometheus.CounterVec
	FilesSkipped   *prometheus.CounterVec
	FilesFailed    *prometheus.CounterVec

	RowsWritten     *prometheus.CounterVec
	RowsQuarantined *prometheus.CounterVec

	QuarantineReasons *prometheus.CounterVec

	IngestDuration *prometheus.HistogramVec

	DimensionConflicts prometheus.Counter
}

// Labels are the standard metric labels for a bronze file.
type Labels struct {
	Vendor   string
	DataType string
	Table    string
}

func (l Labels) values() []string {
	return []string{l.Vendor, l.DataType, l.Table}
}

var (
	instance *Metrics
	initOnce sync.Once
)

// Init registers all metrics with the default registry. Safe to call more
// than once.
func Init() *Metrics {
	initOnce.Do(func() {
		labelNames := []string{"vendor", "data_type", "table"}

		instance = &Metrics{
			FilesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "marketlake_files_processed_total",
				Help: "Bronze files ingested successfully.",
			}, labelNames),
			FilesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "marketlake_files_skipped_total",
				Help: "Bronze files skipped by the idempotency check.",
			}, labelNames),
			FilesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "marketlake_files_failed_total",
				Help: "Bronze files that failed ingestion.",
			}, labelNames),
			RowsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "marketlake_rows_written_total",
				Help: "Rows appended to the event store.",
			}, labelNames),
			RowsQuarantined: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "marketlake_rows_quarantined_total",
				Help: "Rows routed to quarantine.",
			}, labelNames),
			QuarantineReasons: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "marketlake_quarantine_reasons_total",
				Help: "Quarantined rows by pipeline stage.",
			}, []string{"vendor", "data_type", "table", "stage"}),
			IngestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "marketlake_ingest_duration_seconds",
				Help:    "Wall time per file ingestion.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			}, labelNames),
			DimensionConflicts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "marketlake_dimension_conflicts_total",
				Help: "Optimistic concurrency conflicts on dimension commits.",
			}),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it on first use.
func Get() *Metrics {
	return Init()
}

// IncFileProcessed records a successful file.
func (m *Metrics) IncFileProcessed(l Labels) {
	m.FilesProcessed.WithLabelValues(l.values()...).Inc()
}

// IncFileSkipped records an idempotency skip.
func (m *Metrics) IncFileSkipped(l Labels) {
	m.FilesSkipped.WithLabelValues(l.values()...).Inc()
}

// IncFileFailed records a failed file.
func (m *Metrics) IncFileFailed(l Labels) {
	m.FilesFailed.WithLabelValues(l.values()...).Inc()
}

// AddRows records row counts for a completed file.
func (m *Metrics) AddRows(l Labels, written, quarantined int64) {
	m.RowsWritten.WithLabelValues(l.values()...).Add(float64(written))
	m.RowsQuarantined.WithLabelValues(l.values()...).Add(float64(quarantined))
}

// AddQuarantineReason records quarantined rows for one stage.
func (m *Metrics) AddQuarantineReason(l Labels, stage string, n int64) {
	m.QuarantineReasons.WithLabelValues(l.Vendor, l.DataType, l.Table, stage).Add(float64(n))
}

// IncDimensionConflict records one lost optimistic concurrency race on a
// dimension commit.
func (m *Metrics) IncDimensionConflict() {
	m.DimensionConflicts.Inc()
}

// ObserveIngestDuration records the wall time of one ingest call.
func (m *Metrics) ObserveIngestDuration(l Labels, seconds float64) {
	m.IngestDuration.WithLabelValues(l.values()...).Observe(seconds)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
