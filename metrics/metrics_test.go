package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getMetrics(t *testing.T, c *PrometheusCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.Path(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewMetrics_NilConfig(t *testing.T) {
	c, err := NewMetrics(nil)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestMustNewMetrics(t *testing.T) {
	assert.Panics(t, func() { MustNewMetrics(nil) })
	assert.NotPanics(t, func() {
		assert.NotNil(t, MustNewMetrics(&Config{Namespace: "test"}))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "/metrics", cfg.Path)
	assert.Equal(t, "nebulas", cfg.Namespace)
}

func TestCounter(t *testing.T) {
	c, err := NewPrometheus(&Config{Namespace: "test"})
	require.NoError(t, err)

	c.Counter("scheduler_runs_total", map[string]string{"kind": "via", "status": "ok"})
	c.Counter("scheduler_runs_total", map[string]string{"status": "error", "kind": "every"})

	body := getMetrics(t, c)
	assert.Contains(t, body, `test_scheduler_runs_total{kind="via",status="ok"} 1`)
	assert.Contains(t, body, `test_scheduler_runs_total{kind="every",status="error"} 1`)
}

func TestHistogram(t *testing.T) {
	c, err := NewPrometheus(&Config{Namespace: "test"})
	require.NoError(t, err)

	c.Histogram("run_duration_seconds", 0.25, map[string]string{"kind": "on"})
	assert.Contains(t, getMetrics(t, c), "test_run_duration_seconds_count")
}

func TestGauge(t *testing.T) {
	c, err := NewPrometheus(&Config{Namespace: "test"})
	require.NoError(t, err)

	c.AddGauge("active_loops", 1, nil)
	c.AddGauge("active_loops", 1, nil)
	c.AddGauge("active_loops", -1, nil)
	assert.Contains(t, getMetrics(t, c), "test_active_loops 1")

	c.Gauge("active_loops", 7, nil)
	assert.Contains(t, getMetrics(t, c), "test_active_loops 7")
}

func TestRecordPanic(t *testing.T) {
	c, err := NewPrometheus(&Config{})
	require.NoError(t, err)

	c.RecordPanic("runtime", "spawn")
	assert.Contains(t, getMetrics(t, c), `nebulas_system_panic_total{component="runtime",operation="spawn"} 1`)
}

func TestPath(t *testing.T) {
	c, err := NewPrometheus(&Config{})
	require.NoError(t, err)
	assert.Equal(t, "/metrics", c.Path())

	c, err = NewPrometheus(&Config{Path: "/internal/metrics"})
	require.NoError(t, err)
	assert.Equal(t, "/internal/metrics", c.Path())
}
