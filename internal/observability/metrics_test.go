package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiphotofinder/photofinder/internal/observability/metrics"
)

func TestPipelineMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	p := m.Pipeline
	p.RecordFile(metrics.ResultEnriched)
	p.RecordFile(metrics.ResultEnriched)
	p.RecordFile(metrics.ResultFailed)
	p.ObserveInference("keywords", 1.5, false)
	p.ObserveInference("description", 0.5, true)
	p.IncrementStoreUpserts()
	p.IncrementMetadataErrors()
	p.AddArchived(2, 1)
	p.IncrementCacheHits()

	assert.InDelta(t, 2, testutil.ToFloat64(p.FilesTotal.WithLabelValues(metrics.ResultEnriched)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.FilesTotal.WithLabelValues(metrics.ResultFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.InferenceErrors.WithLabelValues("description")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(p.InferenceErrors.WithLabelValues("keywords")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.StoreUpserts), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(p.ArchivedFiles), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.RestoredBackups), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.CacheHits), 0)

	count, err := testutil.GatherAndCount(m.Registry(), "photofinder_inference_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestWriteTextfile(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.Pipeline.RecordFile(metrics.ResultEnriched)

	path := filepath.Join(t.TempDir(), "textfile", "photofinder.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `photofinder_files_total{result="enriched"} 1`)
}

func TestRegistriesAreIndependent(t *testing.T) {
	first, err := NewMetrics()
	require.NoError(t, err)
	second, err := NewMetrics()
	require.NoError(t, err)

	first.Pipeline.IncrementStoreUpserts()
	assert.InDelta(t, 0, testutil.ToFloat64(second.Pipeline.StoreUpserts), 0)
}
