package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterPruneTrigger = 4096
)

// RateLimitMiddleware applies a token bucket per client IP. It is opt-in:
// only routes that name it are limited.
type RateLimitMiddleware struct {
	logger          types.Logger
	metrics         types.MetricsManager
	rateLimitConfig *RateLimitConfig
	weight          int
	now             func() time.Time

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `json:"requests_per_minute"`
	Burst             int     `json:"burst"`
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimitMiddleware(item *types.MiddlewareItemConfig, logger types.Logger, metrics types.MetricsManager) *RateLimitMiddleware {
	rateLimitConfig := &RateLimitConfig{RequestsPerMinute: 60, Burst: 10}
	decodeParams(item, rateLimitConfig, logger, NameRateLimit)
	if rateLimitConfig.RequestsPerMinute <= 0 {
		rateLimitConfig.RequestsPerMinute = 60
	}
	if rateLimitConfig.Burst <= 0 {
		rateLimitConfig.Burst = 1
	}

	return &RateLimitMiddleware{
		logger:          logger,
		metrics:         metrics,
		rateLimitConfig: rateLimitConfig,
		weight:          weightOf(item, 60),
		now:             time.Now,
		limiters:        make(map[string]*clientLimiter),
	}
}

func (rl *RateLimitMiddleware) Name() string { return NameRateLimit }
func (rl *RateLimitMiddleware) Weight() int  { return rl.weight }
func (rl *RateLimitMiddleware) OptIn() bool  { return true }

func (rl *RateLimitMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	client := RealIP(ctx)

	if !rl.allow(client) {
		rl.logger.Warn("Rate limit exceeded", zap.String("client", client), zap.ByteString("path", ctx.Path()))
		rl.metrics.Counter("http_rate_limited_total", nil).Inc()

		retryAfter := int(60 / rl.rateLimitConfig.RequestsPerMinute)
		if retryAfter < 1 {
			retryAfter = 1
		}
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(retryAfter))
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		ctx.SetContentType("application/json; charset=utf-8")
		ctx.SetBodyString(`{"success":false,"error":"Rate limit exceeded. Try again later"}`)
		return
	}

	next(ctx)
}

func (rl *RateLimitMiddleware) allow(client string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.limiters[client]
	if !exists {
		if len(rl.limiters) >= limiterPruneTrigger {
			rl.pruneLocked(now)
		}
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.rateLimitConfig.RequestsPerMinute/60), rl.rateLimitConfig.Burst),
		}
		rl.limiters[client] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

func (rl *RateLimitMiddleware) pruneLocked(now time.Time) {
	for client, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, client)
		}
	}
}
