package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceGenerationCounters(t *testing.T) {
	metrics := NewMetricsService()

	metrics.ObserveGeneration(GenerationOutcomeSuccess, 40*time.Millisecond, 3)
	metrics.ObserveGeneration(GenerationOutcomeBusy, 0, 0)
	metrics.ObserveGenerationJob("succeeded")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generationTotal.WithLabelValues(GenerationOutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generationTotal.WithLabelValues(GenerationOutcomeBusy)))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.unscheduledHours))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generationJobs.WithLabelValues("succeeded")))
}

func TestMetricsServiceHandlerServesRegistry(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/timetable", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveGeneration(GenerationOutcomeError, 0, 0)
	})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
