package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigIsNil          = errors.New("config is nil")
	ErrConfigLoadFailed     = errors.New("config load failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
	ErrConfigInvalidPath    = errors.New("config path is invalid")
)

var (
	ErrServerNotRunning     = errors.New("server not running")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrServerStartFailed    = errors.New("server start failed")
	ErrServerStopFailed     = errors.New("server stop failed")
	ErrHandlerIsNil         = errors.New("handler is nil")
	ErrRouteConflict        = errors.New("route conflict")
)

var (
	ErrMiddlewareNotFound     = errors.New("middleware not found")
	ErrMiddlewareOrderInvalid = errors.New("middleware order invalid")
	ErrBodyTooLarge           = errors.New("body too large")
	ErrRateLimitExceeded      = errors.New("rate limit exceeded")
)

var (
	ErrCacheKeyEmpty         = errors.New("cache key empty")
	ErrCacheConnectionFailed = errors.New("cache connection failed")
	ErrCacheTypeUnknown      = errors.New("cache type unknown")
	ErrCacheOperationFailed  = errors.New("cache operation failed")
	ErrCacheKeyDerivation    = errors.New("cache key derivation failed")
)

var (
	ErrCronJobNotFound       = errors.New("cron job not found")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobFailed         = errors.New("cron job failed")
	ErrCronJobTimeout        = errors.New("cron job timeout")
	ErrCronIsRunning         = errors.New("cron is running")
	ErrCronIsNotRunning      = errors.New("cron is not running")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
)

var (
	ErrClientRequestFailed   = errors.New("client request failed")
	ErrClientResponseInvalid = errors.New("client response invalid")
	ErrClientTimeout         = errors.New("client timeout")
	ErrCircuitBreakerOpen    = errors.New("circuit breaker open")
)

var (
	ErrHealthCheckFailed = errors.New("health check failed")
)

var (
	ErrLogFileIsEmpty    = errors.New("log file is empty")
	ErrLoggerTypeUnknown = errors.New("logger type unknown")
)

var (
	ErrServiceIsRunning     = errors.New("service is running")
	ErrServiceIsNotRunning  = errors.New("service is not running")
	ErrComponentStartFailed = errors.New("component start failed")
	ErrComponentStopFailed  = errors.New("component stop failed")
)

var (
	ErrModelRequestFailed   = errors.New("model request failed")
	ErrModelResponseInvalid = errors.New("model response invalid")
)

var (
	ErrLLMNotConfigured   = errors.New("OpenAI API key not configured")
	ErrLLMRequestFailed   = errors.New("AI service error")
	ErrLLMResponseInvalid = errors.New("AI response invalid")
)

var (
	ErrOCRNotInstalled    = errors.New("tesseract OCR not found")
	ErrOCRFailed          = errors.New("OCR extraction failed")
	ErrImageInvalid       = errors.New("invalid image")
	ErrImageTypeForbidden = errors.New("invalid file type")
)

var (
	ErrHistoryNotFound   = errors.New("history record not found")
	ErrHistoryIsDisabled = errors.New("history is disabled")
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrResourceNotFound = errors.New("resource not found")
	ErrInternalError    = errors.New("internal error")
	ErrInvalidState     = errors.New("invalid state")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// ValidationError carries a message meant verbatim for API clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
