package middleware

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const DefaultMaxBodySize = 16 * 1024 * 1024

type BodyLimitMiddleware struct {
	logger          types.Logger
	metrics         types.MetricsManager
	bodyLimitConfig *BodyLimitConfig
	weight          int
	errorResponse   []byte
}

type BodyLimitConfig struct {
	MaxBodySize int64 `json:"max_body_size"`
}

func NewBodyLimitMiddleware(item *types.MiddlewareItemConfig, logger types.Logger, metrics types.MetricsManager) *BodyLimitMiddleware {
	bodyLimitConfig := &BodyLimitConfig{MaxBodySize: DefaultMaxBodySize}
	decodeParams(item, bodyLimitConfig, logger, NameBodyLimit)
	if bodyLimitConfig.MaxBodySize <= 0 {
		bodyLimitConfig.MaxBodySize = DefaultMaxBodySize
	}

	return &BodyLimitMiddleware{
		logger:          logger,
		metrics:         metrics,
		bodyLimitConfig: bodyLimitConfig,
		weight:          weightOf(item, 50),
		errorResponse: []byte(fmt.Sprintf(
			`{"success":false,"error":"Request body exceeds maximum size of %d bytes"}`,
			bodyLimitConfig.MaxBodySize)),
	}
}

func (bl *BodyLimitMiddleware) Name() string { return NameBodyLimit }
func (bl *BodyLimitMiddleware) Weight() int  { return bl.weight }

func (bl *BodyLimitMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	if ctx.IsGet() || ctx.IsHead() || ctx.IsOptions() {
		next(ctx)
		return
	}

	size := int64(ctx.Request.Header.ContentLength())
	if size <= 0 {
		size = int64(len(ctx.PostBody()))
	}

	if size > bl.bodyLimitConfig.MaxBodySize {
		bl.metrics.Counter("http_body_rejected_total", nil).Inc()
		ctx.SetStatusCode(fasthttp.StatusRequestEntityTooLarge)
		ctx.SetContentType("application/json; charset=utf-8")
		ctx.SetConnectionClose()
		ctx.SetBody(bl.errorResponse)
		return
	}

	next(ctx)
}
