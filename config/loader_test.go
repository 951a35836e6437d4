package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const sampleConfig = `
name: fraud-api
version: 2.1.0
server:
  http:
    port: 8080
cache:
  type: memory
  ttl: 5m
  max_items: 64
  sweep_schedule: "*/30 * * * * *"
model:
  base_url: http://model:8500
  top_k: 4
  vnd_to_usd_rate: 25000
llm:
  api_key: ${OPENAI_API_KEY}
  base_url: https://openrouter.ai/api/v1
  model: anthropic/claude-3.5-sonnet
  usd_to_vnd_rate: 24000
history:
  enabled: true
  type: memory
`

func newTestLoader(env map[string]string) *Loader {
	loader := NewLoader()
	loader.lookupEnv = func(key string) string { return env[key] }
	return loader
}

func TestLoader_LoadFromBytes(t *testing.T) {
	config, err := newTestLoader(map[string]string{"OPENAI_API_KEY": "sk-or-test"}).LoadFromBytes([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "fraud-api", config.Name)
	assert.Equal(t, 8080, config.Server.HTTP.Port)
	assert.Equal(t, "0.0.0.0", config.Server.HTTP.Host, "defaults survive a partial document")
	assert.Equal(t, 5*time.Minute, config.Cache.TTL)
	assert.Equal(t, 64, config.Cache.MaxItems)
	assert.Equal(t, "sk-or-test", config.LLM.APIKey)
	assert.Equal(t, 4, config.Model.TopK)
	assert.Equal(t, "memory", config.History.Type)
	assert.Equal(t, 30*24*time.Hour, config.History.Retention)
	assert.True(t, config.Middlewares.Enabled)
}

func TestLoader_MissingEnvLeavesKeyEmpty(t *testing.T) {
	config, err := newTestLoader(nil).LoadFromBytes([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Empty(t, config.LLM.APIKey)
}

func TestLoader_Validation(t *testing.T) {
	cases := map[string]string{
		"unknown cache type": "cache:\n  type: memcached\n",
		"zero max items":     "cache:\n  max_items: 0\n",
		"bad model url":      "model:\n  base_url: not a url\n",
		"bad history type":   "history:\n  type: sqlite\n",
	}

	for name, document := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := newTestLoader(nil).LoadFromBytes([]byte(document))
			assert.ErrorIs(t, err, types.ErrConfigValidateFailed)
		})
	}
}

func TestLoader_ParseError(t *testing.T) {
	_, err := newTestLoader(nil).LoadFromBytes([]byte("server: [unterminated"))
	assert.ErrorIs(t, err, types.ErrConfigParseFailed)
}

func TestLoader_LoadFromFile(t *testing.T) {
	loader := newTestLoader(nil)

	_, err := loader.LoadFromFile(testContext(t), filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, types.ErrConfigNotFound)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	config, err := loader.LoadFromFile(testContext(t), path)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", config.Version)
}

func TestConfigurationManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	manager, err := NewConfigurationManager(testContext(t), path)
	require.NoError(t, err)

	require.NoError(t, manager.Start())
	assert.True(t, manager.IsRunning())
	assert.ErrorIs(t, manager.Start(), types.ErrServerAlreadyRunning)

	assert.Equal(t, "anthropic/claude-3.5-sonnet", manager.GetValue("llm.model", ""))
	assert.Equal(t, "fallback", manager.GetValue("llm.missing", "fallback"))

	var model types.ModelConfig
	require.NoError(t, manager.GetAs("model", &model))
	assert.Equal(t, "http://model:8500", model.BaseURL)

	assert.ErrorIs(t, manager.GetAs("nothing.here", &model), types.ErrConfigNotFound)

	var cacheConfig types.CacheConfig
	require.NoError(t, manager.GetAs("cache", &cacheConfig))
	assert.Equal(t, 5*time.Minute, cacheConfig.TTL)
	assert.Equal(t, 64, cacheConfig.MaxItems)

	var port string
	assert.ErrorIs(t, manager.GetAs("server.http.port", &port), types.ErrConfigInvalidPath)

	require.NoError(t, manager.Stop())
	assert.False(t, manager.IsRunning())
}

func TestNewStaticManager(t *testing.T) {
	_, err := NewStaticManager(testContext(t), nil)
	assert.ErrorIs(t, err, types.ErrConfigIsNil)

	manager, err := NewStaticManager(testContext(t), NewLoader().Defaults())
	require.NoError(t, err)
	assert.Equal(t, 256, manager.GetConfig().Cache.MaxItems)
	assert.Equal(t, 600*time.Second, manager.GetConfig().Cache.TTL)
}

func TestParser_HidesSecrets(t *testing.T) {
	parser := NewParser(&types.ServiceConfig{
		Name:    "fraud-api",
		Version: "1.0.0",
		LLM:     &types.LLMConfig{APIKey: "sk-secret", Model: "anthropic/claude-3.5-sonnet"},
	})

	assert.Equal(t, "anthropic/claude-3.5-sonnet", parser.GetValue("llm.model", ""))
	assert.Equal(t, "none", parser.GetValue("llm.api_key", "none"))
	assert.Equal(t, "none", parser.GetValue("cache", "none"), "nil sections count as missing")
	assert.NotContains(t, parser.document, "sk-secret")

	whole, ok := parser.GetValue("", nil).(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "fraud-api", whole["name"])
}
