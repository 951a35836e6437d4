package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const (
	RequestIDHeader = "X-Request-ID"

	// MetadataKey holds the request metadata map in ctx user values.
	MetadataKey = "metadata"
)

type MetadataMiddleware struct {
	logger         types.Logger
	metrics        types.MetricsManager
	metadataConfig *MetadataConfig
	weight         int
}

type MetadataConfig struct {
	GenerateRequestID bool `json:"generate_request_id"`
}

func NewMetadataMiddleware(item *types.MiddlewareItemConfig, logger types.Logger, metrics types.MetricsManager) *MetadataMiddleware {
	metadataConfig := &MetadataConfig{GenerateRequestID: true}
	decodeParams(item, metadataConfig, logger, NameMetadata)

	return &MetadataMiddleware{
		logger:         logger,
		metrics:        metrics,
		metadataConfig: metadataConfig,
		weight:         weightOf(item, 20),
	}
}

func (m *MetadataMiddleware) Name() string { return NameMetadata }
func (m *MetadataMiddleware) Weight() int  { return m.weight }

// Handle makes sure every request carries an X-Request-ID, echoes it on
// the response and stores the request metadata for handlers.
func (m *MetadataMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	requestID := string(ctx.Request.Header.Peek(RequestIDHeader))
	if requestID == "" && m.metadataConfig.GenerateRequestID {
		requestID = uuid.New().String()
		ctx.Request.Header.Set(RequestIDHeader, requestID)
	}

	metadata := map[string]string{
		"request_id": requestID,
		"real_ip":    RealIP(ctx),
	}
	ctx.SetUserValue(MetadataKey, metadata)

	next(ctx)

	if requestID != "" {
		ctx.Response.Header.Set(RequestIDHeader, requestID)
	}
}

// RequestID returns the id assigned by the metadata middleware, if any.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if metadata, ok := ctx.UserValue(MetadataKey).(map[string]string); ok {
		return metadata["request_id"]
	}
	return string(ctx.Request.Header.Peek(RequestIDHeader))
}

// RealIP prefers proxy headers over the socket address.
func RealIP(ctx *fasthttp.RequestCtx) string {
	if realIP := string(ctx.Request.Header.Peek("X-Real-IP")); realIP != "" {
		return realIP
	}

	if forwarded := string(ctx.Request.Header.Peek("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	return ctx.RemoteIP().String()
}
