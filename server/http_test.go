package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/metrics"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/middleware"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

func serve(router *Router, method, path string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("127.0.0.1")}, nil)
	router.Handler(ctx)
	return ctx
}

func TestRouter_StaticAndParams(t *testing.T) {
	router := NewRouter(nil)

	router.GET("/api/history", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("list")
	})
	router.GET("/api/history/{id}", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("get " + ctx.UserValue("id").(string))
	})
	router.DELETE("/api/history/{id}", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("delete " + ctx.UserValue("id").(string))
	})

	ctx := serve(router, "GET", "/api/history/")
	assert.Equal(t, "list", string(ctx.Response.Body()))

	ctx = serve(router, "GET", "/api/history/abc-123")
	assert.Equal(t, "get abc-123", string(ctx.Response.Body()))
	assert.Equal(t, "/api/history/{id}", ctx.UserValue(types.RoutePatternKey))

	ctx = serve(router, "DELETE", "/api/history/abc-123")
	assert.Equal(t, "delete abc-123", string(ctx.Response.Body()))

	assert.Len(t, router.Routes(), 3)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := NewRouter(nil)
	router.POST("/api/model/predict-fraud", func(ctx *fasthttp.RequestCtx) {})

	ctx := serve(router, "GET", "/nope")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"error":"Resource not found"}`, string(ctx.Response.Body()))

	ctx = serve(router, "GET", "/api/model/predict-fraud")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
	assert.Equal(t, "POST", string(ctx.Response.Header.Peek("Allow")))
}

func TestRouter_LiteralBeatsParam(t *testing.T) {
	router := NewRouter(nil)
	router.GET("/items/{id}", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("param") })
	router.GET("/items/{id}/raw", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("raw") })

	assert.Equal(t, "param", string(serve(router, "GET", "/items/7").Response.Body()))
	assert.Equal(t, "raw", string(serve(router, "GET", "/items/7/raw").Response.Body()))
}

func TestRouter_GroupMiddlewares(t *testing.T) {
	var trace []string
	manager := middleware.NewManager(logger.NewNop(), metrics.NewNoop())
	require.NoError(t, manager.Register(&tracingMiddleware{name: "limit", weight: 10, optIn: true, trace: &trace}))
	require.NoError(t, manager.Finalize())

	router := NewRouter(manager)
	router.GET("/health", func(ctx *fasthttp.RequestCtx) { trace = append(trace, "health") })
	router.Group("/api/openai").WithMiddlewares("limit").WithTimeout(time.Minute).
		POST("/chat", func(ctx *fasthttp.RequestCtx) {
			trace = append(trace, "chat")
			assert.Equal(t, time.Minute, ctx.UserValue(types.RouteTimeoutKey))
		})

	serve(router, "GET", "/health")
	serve(router, "POST", "/api/openai/chat")

	assert.Equal(t, []string{"health", "limit", "chat"}, trace)
}

func TestRouter_OptionsOnKnownPath(t *testing.T) {
	router := NewRouter(nil)
	router.POST("/api/openai/chat", func(ctx *fasthttp.RequestCtx) {})

	ctx := serve(router, "OPTIONS", "/api/openai/chat")
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}

func TestFastHTTPServer_Lifecycle(t *testing.T) {
	server, err := NewHTTPServer(&types.HTTPConfig{Host: "127.0.0.1", Port: 0}, logger.NewNop(), nil)
	require.NoError(t, err)

	server.Router().GET("/ping", func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString("pong") })

	require.NoError(t, server.Start())
	assert.True(t, server.IsRunning())
	assert.ErrorIs(t, server.Start(), types.ErrServerAlreadyRunning)

	status, body, err := fasthttp.Get(nil, "http://"+server.Addr()+"/ping")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, status)
	assert.Equal(t, "pong", string(body))

	require.NoError(t, server.Stop())
	assert.False(t, server.IsRunning())
	assert.ErrorIs(t, server.Stop(), types.ErrServerNotRunning)
}

type tracingMiddleware struct {
	name   string
	weight int
	optIn  bool
	trace  *[]string
}

func (m *tracingMiddleware) Name() string { return m.name }
func (m *tracingMiddleware) Weight() int  { return m.weight }
func (m *tracingMiddleware) OptIn() bool  { return m.optIn }

func (m *tracingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	*m.trace = append(*m.trace, m.name)
	next(ctx)
}
