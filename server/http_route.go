package server

import (
	"time"

	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

// RouteBuilder edits the RouteConfig the router already holds, so calls
// chained after GET/POST take effect immediately.
type RouteBuilder struct {
	config *types.RouteConfig
}

func (rb *RouteBuilder) WithMiddlewares(names ...string) types.RouteBuilder {
	rb.config.Middlewares = append(rb.config.Middlewares, names...)
	return rb
}

func (rb *RouteBuilder) WithoutMiddlewares(names ...string) types.RouteBuilder {
	rb.config.DisabledMiddlewares = append(rb.config.DisabledMiddlewares, names...)
	return rb
}

func (rb *RouteBuilder) WithTimeout(duration time.Duration) types.RouteBuilder {
	rb.config.Timeout = duration
	return rb
}

type GroupBuilder struct {
	router *Router
	prefix string
	config *types.RouteConfig
}

func (gb *GroupBuilder) WithMiddlewares(names ...string) types.GroupBuilder {
	gb.config.Middlewares = append(gb.config.Middlewares, names...)
	return gb
}

func (gb *GroupBuilder) WithoutMiddlewares(names ...string) types.GroupBuilder {
	gb.config.DisabledMiddlewares = append(gb.config.DisabledMiddlewares, names...)
	return gb
}

func (gb *GroupBuilder) WithTimeout(duration time.Duration) types.GroupBuilder {
	gb.config.Timeout = duration
	return gb
}

// Route registers a handler under the group prefix. The group settings in
// effect at registration time are copied into the route.
func (gb *GroupBuilder) Route(method, path string, handler types.FastHTTPHandler) types.RouteBuilder {
	config := &types.RouteConfig{
		Middlewares:         append([]string(nil), gb.config.Middlewares...),
		DisabledMiddlewares: append([]string(nil), gb.config.DisabledMiddlewares...),
		Timeout:             gb.config.Timeout,
	}

	gb.router.Add(method, gb.prefix+path, handler, config)

	return &RouteBuilder{config: config}
}

func (gb *GroupBuilder) GET(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return gb.Route(fasthttp.MethodGet, path, handler)
}

func (gb *GroupBuilder) POST(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return gb.Route(fasthttp.MethodPost, path, handler)
}

func (gb *GroupBuilder) DELETE(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return gb.Route(fasthttp.MethodDelete, path, handler)
}

func (gb *GroupBuilder) Group(prefix string) types.GroupBuilder {
	return &GroupBuilder{
		router: gb.router,
		prefix: gb.prefix + prefix,
		config: &types.RouteConfig{
			Middlewares:         append([]string(nil), gb.config.Middlewares...),
			DisabledMiddlewares: append([]string(nil), gb.config.DisabledMiddlewares...),
			Timeout:             gb.config.Timeout,
		},
	}
}
