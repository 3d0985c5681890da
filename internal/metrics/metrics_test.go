package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("ShouldCountBuilds", func(t *testing.T) {
		m := New()
		m.ObserveBuild(BuildOK, 12, 1)
		m.ObserveBuild(BuildEmptyCorpus, 0, 2)

		assert.InDelta(t, 1, testutil.ToFloat64(m.IndexBuilds.WithLabelValues(BuildOK)), 1e-9)
		assert.InDelta(t, 1, testutil.ToFloat64(m.IndexBuilds.WithLabelValues(BuildEmptyCorpus)), 1e-9)
		assert.InDelta(t, 12, testutil.ToFloat64(m.ChunksIndexed), 1e-9)
		assert.InDelta(t, 3, testutil.ToFloat64(m.DocumentsSkipped), 1e-9)
	})

	t.Run("ShouldCountQueriesAndFallbacks", func(t *testing.T) {
		m := New()
		m.ObserveQuery(20*time.Millisecond, false)
		m.ObserveQuery(30*time.Millisecond, true)

		assert.InDelta(t, 2, testutil.ToFloat64(m.Queries), 1e-9)
		assert.InDelta(t, 1, testutil.ToFloat64(m.ComposerFallbacks), 1e-9)
		assert.Equal(t, 1, testutil.CollectAndCount(m.QueryLatency))
	})

	t.Run("ShouldIgnoreNilReceiver", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.ObserveBuild(BuildOK, 1, 0)
			m.ObserveQuery(time.Second, true)
		})
	})

	t.Run("ShouldServeTextFormat", func(t *testing.T) {
		m := New()
		m.ObserveBuild(BuildOK, 3, 0)
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "guideline_rag_chunks_indexed_total 3")
	})
}
