// Package metrics provides custom Prometheus metrics for the components of photofinder.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// File results recorded by PipelineMetrics.RecordFile
const (
	ResultEnriched = "enriched"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

// PipelineMetrics contains all Prometheus metrics related to enrichment passes.
type PipelineMetrics struct {
	FilesTotal        *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	InferenceErrors   *prometheus.CounterVec
	StoreUpserts      prometheus.Counter
	MetadataErrors    prometheus.Counter
	ArchivedFiles     prometheus.Counter
	RestoredBackups   prometheus.Counter
	CacheHits         prometheus.Counter
	PassDuration      prometheus.Histogram
	registry          *prometheus.Registry
}

// NewPipelineMetrics creates a new instance of PipelineMetrics.
// It requires a Prometheus registry to register the metrics.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for PipelineMetrics.
func (m *PipelineMetrics) initMetrics() {
	m.FilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photofinder_files_total",
		Help: "Total number of files handled, by result.",
	}, []string{"result"})

	m.InferenceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photofinder_inference_duration_seconds",
		Help:    "Duration of inference calls in seconds, by phase.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"phase"})

	m.InferenceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photofinder_inference_errors_total",
		Help: "Total number of failed inference calls, by phase.",
	}, []string{"phase"})

	m.StoreUpserts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photofinder_store_upserts_total",
		Help: "Total number of record upserts.",
	})

	m.MetadataErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photofinder_metadata_errors_total",
		Help: "Total number of failed metadata writes.",
	})

	m.ArchivedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photofinder_archived_files_total",
		Help: "Total number of files moved into the processed directory.",
	})

	m.RestoredBackups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photofinder_restored_backups_total",
		Help: "Total number of metadata backups renamed to their original names.",
	})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photofinder_cache_hits_total",
		Help: "Total number of files whose results were reused from identical content.",
	})

	m.PassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "photofinder_pass_duration_seconds",
		Help:    "Duration of enrichment passes in seconds.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
}

// RecordFile increments the file counter for result.
func (m *PipelineMetrics) RecordFile(result string) {
	m.FilesTotal.WithLabelValues(result).Inc()
}

// ObserveInference records the duration of an inference call and counts it
// as an error when failed is true.
func (m *PipelineMetrics) ObserveInference(phase string, durationSeconds float64, failed bool) {
	m.InferenceDuration.WithLabelValues(phase).Observe(durationSeconds)
	if failed {
		m.InferenceErrors.WithLabelValues(phase).Inc()
	}
}

// IncrementStoreUpserts increases the upsert counter by one.
func (m *PipelineMetrics) IncrementStoreUpserts() {
	m.StoreUpserts.Inc()
}

// IncrementMetadataErrors increases the metadata error counter by one.
func (m *PipelineMetrics) IncrementMetadataErrors() {
	m.MetadataErrors.Inc()
}

// AddArchived adds the moved and restored counts of an archive run.
func (m *PipelineMetrics) AddArchived(moved, restored int) {
	m.ArchivedFiles.Add(float64(moved))
	m.RestoredBackups.Add(float64(restored))
}

// IncrementCacheHits increases the cache hit counter by one.
func (m *PipelineMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// ObservePassDuration records the duration of a full pass in seconds.
func (m *PipelineMetrics) ObservePassDuration(durationSeconds float64) {
	m.PassDuration.Observe(durationSeconds)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FilesTotal.Collect(ch)
	m.InferenceDuration.Collect(ch)
	m.InferenceErrors.Collect(ch)
	ch <- m.StoreUpserts
	ch <- m.MetadataErrors
	ch <- m.ArchivedFiles
	ch <- m.RestoredBackups
	ch <- m.CacheHits
	ch <- m.PassDuration
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FilesTotal.Describe(ch)
	m.InferenceDuration.Describe(ch)
	m.InferenceErrors.Describe(ch)
	ch <- m.StoreUpserts.Desc()
	ch <- m.MetadataErrors.Desc()
	ch <- m.ArchivedFiles.Desc()
	ch <- m.RestoredBackups.Desc()
	ch <- m.CacheHits.Desc()
	ch <- m.PassDuration.Desc()
}
