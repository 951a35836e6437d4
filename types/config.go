package types

import (
	"time"
)

type ConfigManager interface {
	LifecycleManager
	GetConfig() *ServiceConfig
	GetValue(path string, defaultValue interface{}) interface{}
	GetAs(path string, target interface{}) error
}

type ServiceConfig struct {
	Name        string             `yaml:"name" json:"name" validate:"required"`
	Version     string             `yaml:"version" json:"version" validate:"required"`
	Server      *ServerConfig      `yaml:"server" json:"server" validate:"required"`
	Logger      *LoggerConfig      `yaml:"logger" json:"logger"`
	Cache       *CacheConfig       `yaml:"cache" json:"cache" validate:"required"`
	Cron        *CronConfig        `yaml:"cron" json:"cron"`
	Middlewares *MiddlewaresConfig `yaml:"middlewares" json:"middlewares"`
	Metrics     *MetricsConfig     `yaml:"metrics" json:"metrics"`
	Client      *ClientConfig      `yaml:"client" json:"client"`
	Health      *HealthConfig      `yaml:"health" json:"health"`
	Model       *ModelConfig       `yaml:"model" json:"model" validate:"required"`
	LLM         *LLMConfig         `yaml:"llm" json:"llm" validate:"required"`
	OCR         *OCRConfig         `yaml:"ocr" json:"ocr"`
	History     *HistoryConfig     `yaml:"history" json:"history"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http" validate:"required"`
}

type HTTPConfig struct {
	Host               string `yaml:"host" json:"host"`
	Port               int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout        int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout       int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout        int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout    int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxRequestBodySize int    `yaml:"max_request_body_size" json:"max_request_body_size" validate:"min=0"`
}

type LoggerConfig struct {
	Type   string      `yaml:"type" json:"type"`
	Level  string      `yaml:"level" json:"level" validate:"required"`
	Config interface{} `yaml:"config" json:"config"`
}

// CacheConfig configures the two response caches. Both stores share the
// backend type but never the instance.
type CacheConfig struct {
	Type          string        `yaml:"type" json:"type" validate:"required,oneof=memory redis"`
	TTL           time.Duration `yaml:"ttl" json:"ttl" validate:"gt=0"`
	MaxItems      int           `yaml:"max_items" json:"max_items" validate:"gt=0"`
	SweepSchedule string        `yaml:"sweep_schedule" json:"sweep_schedule"`
	Config        interface{}   `yaml:"config" json:"config"`
}

type CronConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Timezone string `yaml:"timezone" json:"timezone" validate:"required_if=Enabled true"`
}

type MiddlewaresConfig struct {
	Enabled     bool                  `yaml:"enabled" json:"enabled"`
	Metadata    *MiddlewareItemConfig `yaml:"metadata" json:"metadata"`
	Logging     *MiddlewareItemConfig `yaml:"logging" json:"logging"`
	Recovery    *MiddlewareItemConfig `yaml:"recovery" json:"recovery"`
	Compression *MiddlewareItemConfig `yaml:"compression" json:"compression"`
	CORS        *MiddlewareItemConfig `yaml:"cors" json:"cors"`
	RateLimit   *MiddlewareItemConfig `yaml:"rate_limit" json:"rate_limit"`
	BodyLimit   *MiddlewareItemConfig `yaml:"body_limit" json:"body_limit"`
}

type MiddlewareItemConfig struct {
	Enabled bool                   `yaml:"enabled" json:"enabled"`
	Weight  int                    `yaml:"weight" json:"weight" validate:"min=0"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
}

type VersionInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	BuildInfo string `json:"build_info"`
}

type MetricsConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Type    string            `yaml:"type" json:"type" validate:"required_if=Enabled true"`
	Path    string            `yaml:"path" json:"path"`
	Prefix  string            `yaml:"prefix" json:"prefix"`
	Labels  map[string]string `yaml:"labels" json:"labels"`
	Runtime bool              `yaml:"runtime" json:"runtime"`
}

type HealthConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type ClientConfig struct {
	DefaultTimeout     time.Duration         `yaml:"default_timeout" json:"default_timeout"`
	MaxIdleConnections int                   `yaml:"max_idle_connections" json:"max_idle_connections"`
	IdleConnTimeout    time.Duration         `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
	DefaultRetries     int                   `yaml:"default_retries" json:"default_retries" validate:"min=0"`
	CircuitBreaker     *CircuitBreakerConfig `yaml:"circuit_breaker" json:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	HalfOpenRequests int           `yaml:"half_open_requests" json:"half_open_requests"`
}

// ModelConfig points at the model server hosting the trained classifier.
type ModelConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	Retries      int           `yaml:"retries" json:"retries" validate:"min=0"`
	TopK         int           `yaml:"top_k" json:"top_k" validate:"min=1"`
	VNDToUSDRate float64       `yaml:"vnd_to_usd_rate" json:"vnd_to_usd_rate" validate:"gt=0"`
}

type LLMConfig struct {
	APIKey       string        `yaml:"api_key" json:"-"`
	BaseURL      string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Model        string        `yaml:"model" json:"model" validate:"required"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	Retries      int           `yaml:"retries" json:"retries" validate:"min=0"`
	USDToVNDRate float64       `yaml:"usd_to_vnd_rate" json:"usd_to_vnd_rate" validate:"gt=0"`
}

type OCRConfig struct {
	Binary          string        `yaml:"binary" json:"binary"`
	DefaultLanguage string        `yaml:"default_language" json:"default_language"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
}

type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Type            string        `yaml:"type" json:"type" validate:"omitempty,oneof=clover memory"`
	Path            string        `yaml:"path" json:"path"`
	Retention       time.Duration `yaml:"retention" json:"retention"`
	CleanupSchedule string        `yaml:"cleanup_schedule" json:"cleanup_schedule"`
}
