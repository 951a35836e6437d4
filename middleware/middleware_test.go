package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/metrics"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

func newRequestCtx(method, path string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 4321}, nil)
	return ctx
}

type recordingMiddleware struct {
	name   string
	weight int
	optIn  bool
	trace  *[]string
}

func (r *recordingMiddleware) Name() string { return r.name }
func (r *recordingMiddleware) Weight() int  { return r.weight }
func (r *recordingMiddleware) OptIn() bool  { return r.optIn }

func (r *recordingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx), _ *types.RouteConfig) {
	*r.trace = append(*r.trace, r.name)
	next(ctx)
}

func TestManager_OrderAndMasks(t *testing.T) {
	var trace []string
	m := NewManager(logger.NewNop(), metrics.NewNoop())

	require.NoError(t, m.Register(&recordingMiddleware{name: "b", weight: 20, trace: &trace}))
	require.NoError(t, m.Register(&recordingMiddleware{name: "a", weight: 10, trace: &trace}))
	require.NoError(t, m.Register(&recordingMiddleware{name: "limit", weight: 30, optIn: true, trace: &trace}))
	require.NoError(t, m.Finalize())

	assert.Equal(t, []string{"a", "b", "limit"}, m.Names())

	handler := func(ctx *fasthttp.RequestCtx) { trace = append(trace, "handler") }

	m.Execute(newRequestCtx("GET", "/"), handler, nil)
	assert.Equal(t, []string{"a", "b", "handler"}, trace)

	trace = nil
	m.Execute(newRequestCtx("GET", "/"), handler, &types.RouteConfig{Middlewares: []string{"limit"}, DisabledMiddlewares: []string{"a"}})
	assert.Equal(t, []string{"b", "limit", "handler"}, trace)

	err := m.Register(&recordingMiddleware{name: "late", weight: 40, trace: &trace})
	assert.ErrorIs(t, err, types.ErrMiddlewareOrderInvalid)
}

func TestManager_DuplicateWeight(t *testing.T) {
	var trace []string
	m := NewManager(logger.NewNop(), metrics.NewNoop())

	require.NoError(t, m.Register(&recordingMiddleware{name: "a", weight: 10, trace: &trace}))
	require.NoError(t, m.Register(&recordingMiddleware{name: "b", weight: 10, trace: &trace}))

	assert.ErrorIs(t, m.Finalize(), types.ErrMiddlewareOrderInvalid)
}

func TestManager_RegisterFromConfig(t *testing.T) {
	m := NewManager(logger.NewNop(), metrics.NewNoop())

	err := m.RegisterFromConfig(&types.MiddlewaresConfig{
		Enabled:   true,
		Recovery:  &types.MiddlewareItemConfig{Enabled: true},
		Metadata:  &types.MiddlewareItemConfig{Enabled: true},
		CORS:      &types.MiddlewareItemConfig{Enabled: false},
		RateLimit: &types.MiddlewareItemConfig{Enabled: true},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{NameRecovery, NameMetadata, NameRateLimit}, m.Names())
}

func TestRecovery_WritesJSONError(t *testing.T) {
	mw := NewRecoveryMiddleware(nil, logger.NewNop(), metrics.NewNoop())
	ctx := newRequestCtx("GET", "/boom")

	mw.Handle(ctx, func(*fasthttp.RequestCtx) { panic("boom") }, nil)

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":false,"error":"An unexpected error occurred"}`, string(ctx.Response.Body()))
}

func TestMetadata_RequestID(t *testing.T) {
	mw := NewMetadataMiddleware(nil, logger.NewNop(), metrics.NewNoop())

	ctx := newRequestCtx("GET", "/")
	var seen string
	mw.Handle(ctx, func(ctx *fasthttp.RequestCtx) { seen = RequestID(ctx) }, nil)

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, string(ctx.Response.Header.Peek(RequestIDHeader)))

	ctx = newRequestCtx("GET", "/")
	ctx.Request.Header.Set(RequestIDHeader, "abc")
	mw.Handle(ctx, func(*fasthttp.RequestCtx) {}, nil)
	assert.Equal(t, "abc", string(ctx.Response.Header.Peek(RequestIDHeader)))
}

func TestRealIP(t *testing.T) {
	ctx := newRequestCtx("GET", "/")
	assert.Equal(t, "10.0.0.7", RealIP(ctx))

	ctx.Request.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", RealIP(ctx))

	ctx.Request.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", RealIP(ctx))
}

func TestCORS(t *testing.T) {
	mw := NewCORSMiddleware(&types.MiddlewareItemConfig{
		Enabled: true,
		Params: map[string]interface{}{
			"allowed_origins": []interface{}{"http://localhost:5173", "*.example.com"},
			"allowed_methods": []interface{}{"GET", "POST"},
		},
	}, logger.NewNop(), metrics.NewNoop())

	t.Run("preflight", func(t *testing.T) {
		ctx := newRequestCtx("OPTIONS", "/api/model/predict-fraud")
		ctx.Request.Header.Set("Origin", "http://localhost:5173")
		called := false

		mw.Handle(ctx, func(*fasthttp.RequestCtx) { called = true }, nil)

		assert.False(t, called)
		assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
		assert.Equal(t, "http://localhost:5173", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
		assert.Equal(t, "GET, POST", string(ctx.Response.Header.Peek("Access-Control-Allow-Methods")))
	})

	t.Run("wildcard subdomain", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/")
		ctx.Request.Header.Set("Origin", "https://app.example.com")
		called := false

		mw.Handle(ctx, func(*fasthttp.RequestCtx) { called = true }, nil)

		assert.True(t, called)
		assert.Equal(t, "https://app.example.com", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
	})

	t.Run("blocked", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/")
		ctx.Request.Header.Set("Origin", "https://evil.test")

		mw.Handle(ctx, func(*fasthttp.RequestCtx) { t.Fatal("next must not run") }, nil)

		assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	})
}

func TestBodyLimit(t *testing.T) {
	mw := NewBodyLimitMiddleware(&types.MiddlewareItemConfig{
		Enabled: true,
		Params:  map[string]interface{}{"max_body_size": 8},
	}, logger.NewNop(), metrics.NewNoop())

	ctx := newRequestCtx("POST", "/api/openai/chat")
	ctx.Request.SetBodyString(`{"message":"hello"}`)

	mw.Handle(ctx, func(*fasthttp.RequestCtx) { t.Fatal("next must not run") }, nil)

	assert.Equal(t, fasthttp.StatusRequestEntityTooLarge, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":false,"error":"Request body exceeds maximum size of 8 bytes"}`, string(ctx.Response.Body()))

	ctx = newRequestCtx("POST", "/api/openai/chat")
	ctx.Request.SetBodyString(`{}`)
	called := false
	mw.Handle(ctx, func(*fasthttp.RequestCtx) { called = true }, nil)
	assert.True(t, called)
}

func TestRateLimit_PerClientBucket(t *testing.T) {
	mw := NewRateLimitMiddleware(&types.MiddlewareItemConfig{
		Enabled: true,
		Params:  map[string]interface{}{"requests_per_minute": 60, "burst": 2},
	}, logger.NewNop(), metrics.NewNoop())

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return now }

	status := func(ip string) int {
		ctx := newRequestCtx("POST", "/api/openai/chat")
		ctx.Request.Header.Set("X-Real-IP", ip)
		mw.Handle(ctx, func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusOK) }, nil)
		return ctx.Response.StatusCode()
	}

	assert.Equal(t, fasthttp.StatusOK, status("1.1.1.1"))
	assert.Equal(t, fasthttp.StatusOK, status("1.1.1.1"))
	assert.Equal(t, fasthttp.StatusTooManyRequests, status("1.1.1.1"))
	assert.Equal(t, fasthttp.StatusOK, status("2.2.2.2"))

	now = now.Add(time.Second)
	assert.Equal(t, fasthttp.StatusOK, status("1.1.1.1"))
}

func TestCompression(t *testing.T) {
	mw := NewCompressionMiddleware(&types.MiddlewareItemConfig{
		Enabled: true,
		Params:  map[string]interface{}{"min_size": 64},
	}, logger.NewNop(), metrics.NewNoop())

	payload := `{"history":"` + strings.Repeat("giao dich ", 200) + `"}`
	respond := func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json; charset=utf-8")
		ctx.SetBodyString(payload)
	}

	t.Run("gzip", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/api/history")
		ctx.Request.Header.Set("Accept-Encoding", "gzip, deflate")

		mw.Handle(ctx, respond, nil)

		assert.Equal(t, "gzip", string(ctx.Response.Header.Peek("Content-Encoding")))
		assert.Equal(t, "Accept-Encoding", string(ctx.Response.Header.Peek("Vary")))

		reader, err := gzip.NewReader(bytes.NewReader(ctx.Response.Body()))
		require.NoError(t, err)
		decoded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, payload, string(decoded))
	})

	t.Run("brotli preferred", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/api/history")
		ctx.Request.Header.Set("Accept-Encoding", "gzip, br")

		mw.Handle(ctx, respond, nil)

		assert.Equal(t, "br", string(ctx.Response.Header.Peek("Content-Encoding")))
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(ctx.Response.Body())))
		require.NoError(t, err)
		assert.Equal(t, payload, string(decoded))
	})

	t.Run("small body untouched", func(t *testing.T) {
		ctx := newRequestCtx("GET", "/health")
		ctx.Request.Header.Set("Accept-Encoding", "gzip")

		mw.Handle(ctx, func(ctx *fasthttp.RequestCtx) {
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"status":"ok"}`)
		}, nil)

		assert.Empty(t, ctx.Response.Header.Peek("Content-Encoding"))
		assert.Equal(t, `{"status":"ok"}`, string(ctx.Response.Body()))
	})

	t.Run("refused encoding", func(t *testing.T) {
		assert.Equal(t, AlgorithmGzip, mw.negotiate("br;q=0, gzip"))
		assert.Equal(t, "", mw.negotiate("identity"))
	})
}
