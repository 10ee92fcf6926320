package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveRequest("completed", "", 3*time.Second)
	m.ObserveRequest("failed", "VIDEO_PROCESSING_ERROR", time.Second)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.CacheSwept(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("completed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("failed", "VIDEO_PROCESSING_ERROR")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.cacheSweeps))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("completed", "", time.Second)
	m.ObserveStage("upload", time.Second)
	m.CacheLookup(true)
	m.CacheSwept(1)
	m.TempFilesSwept(1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveStage("mux", 200*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `voicedub_stage_duration_seconds_count{stage="mux"} 1`)
}
