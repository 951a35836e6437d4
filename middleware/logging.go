package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

var durationBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 15, 60}

type LoggingMiddleware struct {
	logger        types.Logger
	metrics       types.MetricsManager
	loggingConfig *LoggingConfig
	weight        int
}

type LoggingConfig struct {
	LogLevel   string `json:"log_level"`
	LogHeaders bool   `json:"log_headers"`
	LogBody    bool   `json:"log_body"`
}

func NewLoggingMiddleware(item *types.MiddlewareItemConfig, logger types.Logger, metrics types.MetricsManager) *LoggingMiddleware {
	loggingConfig := &LoggingConfig{LogLevel: "info"}
	decodeParams(item, loggingConfig, logger, NameLogging)

	return &LoggingMiddleware{
		logger:        logger,
		metrics:       metrics,
		loggingConfig: loggingConfig,
		weight:        weightOf(item, 30),
	}
}

func (l *LoggingMiddleware) Name() string { return NameLogging }
func (l *LoggingMiddleware) Weight() int  { return l.weight }

func (l *LoggingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	start := time.Now()

	next(ctx)

	duration := time.Since(start)
	status := ctx.Response.StatusCode()

	route := string(ctx.Path())
	if pattern, ok := ctx.UserValue(types.RoutePatternKey).(string); ok {
		route = pattern
	}

	labels := map[string]string{
		"method": string(ctx.Method()),
		"path":   route,
		"status": strconv.Itoa(status),
	}
	l.metrics.Counter("http_requests_total", labels).Inc()
	l.metrics.Histogram("http_request_duration_seconds", durationBuckets, map[string]string{
		"method": labels["method"],
		"path":   route,
	}).Observe(duration.Seconds())

	fields := []zap.Field{
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.Int("status", status),
		zap.Duration("duration", duration),
		zap.String("remote_addr", RealIP(ctx)),
	}

	if requestID := RequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}

	if query := ctx.QueryArgs().QueryString(); len(query) > 0 {
		fields = append(fields, zap.ByteString("query", query))
	}

	if l.loggingConfig.LogHeaders {
		fields = append(fields, zap.Any("headers", sanitizeHeaders(ctx)))
	}

	if l.loggingConfig.LogBody && len(ctx.Response.Body()) > 0 {
		fields = append(fields, zap.String("response", utils.Truncate(string(ctx.Response.Body()), 1000)))
	}

	switch {
	case status >= 500:
		l.logger.Error("Request completed", fields...)
	case status >= 400:
		l.logger.Warn("Request completed", fields...)
	default:
		l.logWithLevel("Request completed", fields...)
	}
}

var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
}

func sanitizeHeaders(ctx *fasthttp.RequestCtx) map[string]string {
	sanitized := make(map[string]string)

	ctx.Request.Header.VisitAll(func(key, value []byte) {
		name := string(key)
		if sensitiveHeaders[strings.ToLower(name)] {
			sanitized[name] = "[REDACTED]"
			return
		}
		sanitized[name] = string(value)
	})

	return sanitized
}

func (l *LoggingMiddleware) logWithLevel(msg string, fields ...zap.Field) {
	switch l.loggingConfig.LogLevel {
	case "debug":
		l.logger.Debug(msg, fields...)
	case "warn":
		l.logger.Warn(msg, fields...)
	case "error":
		l.logger.Error(msg, fields...)
	default:
		l.logger.Info(msg, fields...)
	}
}
