package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/config"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

func newTestConfig(t *testing.T) *types.ServiceConfig {
	t.Helper()

	modelServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(modelServer.Close)

	cfg := config.NewLoader().Defaults()
	cfg.Server.HTTP.Host = "127.0.0.1"
	cfg.Server.HTTP.Port = 0
	cfg.Logger.Level = "error"
	cfg.Model.BaseURL = modelServer.URL
	cfg.LLM.APIKey = ""
	cfg.OCR.Binary = "tesseract-missing-for-tests"
	cfg.Cache.SweepSchedule = "@every 1h"
	cfg.History = &types.HistoryConfig{
		Enabled:         true,
		Type:            "memory",
		Retention:       time.Hour,
		CleanupSchedule: "@every 1h",
	}

	return cfg
}

func startService(t *testing.T, cfg *types.ServiceConfig) *Service {
	t.Helper()

	configManager, err := config.NewStaticManager(testContext(t), cfg)
	require.NoError(t, err)

	s, err := New(testContext(t), configManager)
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() { result <- s.Start() }()

	require.Eventually(t, s.IsRunning, 5*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		_ = s.Stop()
		select {
		case err := <-result:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("service did not stop")
		}
	})

	return s
}

func get(t *testing.T, s *Service, path string) (int, []byte) {
	t.Helper()

	status, body, err := fasthttp.GetTimeout(nil, "http://"+s.Addr()+path, 5*time.Second)
	require.NoError(t, err)
	return status, body
}

func TestService_StartServesRoutes(t *testing.T) {
	s := startService(t, newTestConfig(t))

	status, body := get(t, s, "/health")
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "ok", gjson.GetBytes(body, "status").String())

	status, body = get(t, s, "/health/checks")
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, string(types.StatusDegraded), gjson.GetBytes(body, "status").String())
	assert.Equal(t, string(types.StatusHealthy), gjson.GetBytes(body, "checks.model.status").String())
	assert.Equal(t, "OpenAI API key not configured", gjson.GetBytes(body, "checks.llm.message").String())

	status, body = get(t, s, "/metrics")
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, string(body), "go_goroutines")

	status, body = get(t, s, "/api/history")
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.EqualValues(t, 0, gjson.GetBytes(body, "count").Int())

	status, _ = get(t, s, "/api/unknown")
	assert.Equal(t, fasthttp.StatusNotFound, status)
}

func TestService_RegistersMaintenanceJobs(t *testing.T) {
	s := startService(t, newTestConfig(t))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, JobCacheSweep, jobs[0].Name)
	assert.Equal(t, JobHistoryRetention, jobs[1].Name)
}

func TestService_HistoryDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.History.Enabled = false

	s := startService(t, cfg)

	status, _ := get(t, s, "/api/history")
	assert.Equal(t, fasthttp.StatusNotFound, status)

	require.Len(t, s.Jobs(), 1)
	assert.Equal(t, JobCacheSweep, s.Jobs()[0].Name)
}

func TestService_StopWhenNotRunning(t *testing.T) {
	configManager, err := config.NewStaticManager(testContext(t), newTestConfig(t))
	require.NoError(t, err)

	s, err := New(testContext(t), configManager)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Stop(), types.ErrServiceIsNotRunning)
}

func TestNewService_InvalidPath(t *testing.T) {
	_, err := NewService(testContext(t), "")
	assert.ErrorIs(t, err, types.ErrConfigInvalidPath)

	_, err = NewService(testContext(t), "/nonexistent/config.yml")
	assert.Error(t, err)
}
