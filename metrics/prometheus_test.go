package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

func newTestPrometheus(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(&types.MetricsConfig{
		Enabled: true,
		Type:    "prometheus",
		Prefix:  "fraud_api",
	}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Start())
	t.Cleanup(func() { _ = m.Stop() })

	return m
}

func TestPrometheus_CounterSharesSeries(t *testing.T) {
	m := newTestPrometheus(t)

	labels := map[string]string{"cache": "explanations", "result": "hit"}
	m.Counter("cache_operations_total", labels).Inc()
	m.Counter("cache_operations_total", labels).Add(2)

	assert.Equal(t, 3.0, m.Counter("cache_operations_total", labels).Get())
	assert.Equal(t, 0.0, m.Counter("cache_operations_total", map[string]string{"cache": "explanations", "result": "miss"}).Get())
}

func TestPrometheus_GaugeAndHistogram(t *testing.T) {
	m := newTestPrometheus(t)

	gauge := m.Gauge("cache_items", map[string]string{"cache": "contributions"})
	gauge.Set(10)
	gauge.Dec()
	assert.Equal(t, 9.0, gauge.Get())

	hist := m.Histogram("op_seconds", []float64{0.1, 1}, map[string]string{"op": "get"})
	hist.Observe(0.5)
	hist.ObserveDuration(time.Now())
	assert.Equal(t, uint64(2), hist.GetCount())
	assert.GreaterOrEqual(t, hist.GetSum(), 0.5)
}

func TestPrometheus_Handler(t *testing.T) {
	m := newTestPrometheus(t)
	m.Counter("http_requests_total", map[string]string{"status": "200"}).Inc()

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	m.Handler()(&ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `fraud_api_http_requests_total{status="200"} 1`)
}

func TestManager_DisabledIsNoop(t *testing.T) {
	m, err := NewManager(&types.MetricsConfig{Enabled: false}, logger.NewNop())
	require.NoError(t, err)

	assert.False(t, m.Enabled())
	m.Counter("anything", nil).Inc()
	assert.Equal(t, 0.0, m.Counter("anything", nil).Get())

	var ctx fasthttp.RequestCtx
	m.Handler()(&ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestManager_UnknownType(t *testing.T) {
	_, err := NewManager(&types.MetricsConfig{Enabled: true, Type: "statsd"}, logger.NewNop())
	assert.ErrorIs(t, err, types.ErrMetricsTypeUnknown)
}
