package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type Loader struct {
	validator *validator.Validate
	lookupEnv func(string) string
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
		lookupEnv: os.Getenv,
	}
}

func (l *Loader) LoadFromFile(ctx context.Context, configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.Errorf(types.ErrConfigNotFound, "file not found: %s", configPath)
	}

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	return l.LoadFromBytes(data)
}

// LoadFromBytes expands ${VAR} references, overlays the document on
// Defaults and validates the result.
func (l *Loader) LoadFromBytes(data []byte) (*types.ServiceConfig, error) {
	config := l.Defaults()

	expanded := os.Expand(string(data), l.lookupEnv)

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return config, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "fraud-detection-api",
		Version: "1.0.0",
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{
				Host:               "0.0.0.0",
				Port:               5000,
				ReadTimeout:        30,
				WriteTimeout:       120,
				IdleTimeout:        120,
				ShutdownTimeout:    15,
				MaxRequestBodySize: 16 * 1024 * 1024,
			},
		},
		Logger: &types.LoggerConfig{
			Type:  "zap",
			Level: "info",
		},
		Cache: &types.CacheConfig{
			Type:     "memory",
			TTL:      10 * time.Minute,
			MaxItems: 256,
		},
		Cron: &types.CronConfig{
			Enabled:  true,
			Timezone: "Asia/Ho_Chi_Minh",
		},
		Metrics: &types.MetricsConfig{
			Enabled: true,
			Type:    "prometheus",
			Path:    "/metrics",
			Runtime: true,
		},
		Health: &types.HealthConfig{
			Enabled: true,
			Timeout: 5 * time.Second,
		},
		Client: &types.ClientConfig{
			DefaultTimeout:     30 * time.Second,
			MaxIdleConnections: 64,
			IdleConnTimeout:    90 * time.Second,
			DefaultRetries:     2,
			CircuitBreaker: &types.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				RecoveryTimeout:  30 * time.Second,
				HalfOpenRequests: 1,
			},
		},
		Model: &types.ModelConfig{
			BaseURL:      "http://127.0.0.1:8500",
			Timeout:      10 * time.Second,
			Retries:      1,
			TopK:         6,
			VNDToUSDRate: 25000,
		},
		LLM: &types.LLMConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			Model:        "anthropic/claude-3.5-sonnet",
			Timeout:      60 * time.Second,
			Retries:      2,
			USDToVNDRate: 24000,
		},
		OCR: &types.OCRConfig{
			Binary:          "tesseract",
			DefaultLanguage: "vie+eng",
			Timeout:         30 * time.Second,
		},
		History: &types.HistoryConfig{
			Enabled:         true,
			Type:            "clover",
			Path:            "data/history",
			Retention:       30 * 24 * time.Hour,
			CleanupSchedule: "0 0 3 * * *",
		},
		Middlewares: &types.MiddlewaresConfig{
			Enabled: true,
			Recovery: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  10,
				Params: map[string]interface{}{
					"stack_trace": true,
				},
			},
			Metadata: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  20,
				Params: map[string]interface{}{
					"generate_request_id": true,
				},
			},
			Logging: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  30,
				Params: map[string]interface{}{
					"log_level":   "info",
					"log_headers": false,
					"log_body":    false,
				},
			},
			CORS: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  40,
				Params: map[string]interface{}{
					"allowed_origins": []string{"*"},
					"allowed_methods": []string{"GET", "POST", "DELETE", "OPTIONS"},
					"allowed_headers": []string{"Content-Type", "Authorization", "X-Request-ID"},
					"max_age":         86400,
				},
			},
			BodyLimit: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  50,
				Params: map[string]interface{}{
					"max_body_size": 16 * 1024 * 1024,
				},
			},
			RateLimit: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  60,
				Params: map[string]interface{}{
					"requests_per_minute": 60,
					"burst":               10,
				},
			},
			Compression: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  70,
				Params: map[string]interface{}{
					"min_size": 1024,
					"level":    6,
				},
			},
		},
	}
}
