package middleware

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type CORSMiddleware struct {
	logger         types.Logger
	metrics        types.MetricsManager
	corsConfig     *CORSConfig
	weight         int
	allowsAll      bool
	allowedOrigins map[string]bool
	wildcards      []string
	allowedMethods string
	allowedHeaders string
	exposedHeaders string
	maxAge         string
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

func NewCORSMiddleware(item *types.MiddlewareItemConfig, logger types.Logger, metrics types.MetricsManager) *CORSMiddleware {
	corsConfig := &CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         86400,
	}
	decodeParams(item, corsConfig, logger, NameCORS)

	c := &CORSMiddleware{
		logger:         logger,
		metrics:        metrics,
		corsConfig:     corsConfig,
		weight:         weightOf(item, 40),
		allowedOrigins: make(map[string]bool, len(corsConfig.AllowedOrigins)),
		allowedMethods: strings.Join(corsConfig.AllowedMethods, ", "),
		allowedHeaders: strings.Join(corsConfig.AllowedHeaders, ", "),
		exposedHeaders: strings.Join(corsConfig.ExposedHeaders, ", "),
		maxAge:         strconv.Itoa(corsConfig.MaxAge),
	}

	for _, origin := range corsConfig.AllowedOrigins {
		switch {
		case origin == "*":
			c.allowsAll = true
		case strings.HasPrefix(origin, "*."):
			c.wildcards = append(c.wildcards, strings.TrimPrefix(origin, "*"))
		default:
			c.allowedOrigins[origin] = true
		}
	}

	return c
}

func (c *CORSMiddleware) Name() string { return NameCORS }
func (c *CORSMiddleware) Weight() int  { return c.weight }

func (c *CORSMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		next(ctx)
		return
	}

	if !c.originAllowed(origin) {
		c.logger.Warn("CORS request blocked",
			zap.String("origin", origin),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()))

		ctx.SetStatusCode(fasthttp.StatusForbidden)
		ctx.SetContentType("application/json; charset=utf-8")
		ctx.SetBodyString(`{"success":false,"error":"Origin not allowed"}`)
		return
	}

	c.setOrigin(ctx, origin)

	if ctx.IsOptions() {
		ctx.Response.Header.Set("Access-Control-Allow-Methods", c.allowedMethods)
		ctx.Response.Header.Set("Access-Control-Allow-Headers", c.allowedHeaders)
		ctx.Response.Header.Set("Access-Control-Max-Age", c.maxAge)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	if c.exposedHeaders != "" {
		ctx.Response.Header.Set("Access-Control-Expose-Headers", c.exposedHeaders)
	}

	next(ctx)
}

func (c *CORSMiddleware) originAllowed(origin string) bool {
	if c.allowsAll || c.allowedOrigins[origin] {
		return true
	}

	for _, suffix := range c.wildcards {
		if strings.HasSuffix(origin, suffix) && len(origin) > len(suffix) {
			return true
		}
	}

	return false
}

func (c *CORSMiddleware) setOrigin(ctx *fasthttp.RequestCtx, origin string) {
	if c.allowsAll && !c.corsConfig.AllowCredentials {
		ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	} else {
		ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
		ctx.Response.Header.Add("Vary", "Origin")
	}

	if c.corsConfig.AllowCredentials {
		ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
	}
}
