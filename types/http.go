package types

import (
	"time"
)

type HTTPServer interface {
	LifecycleManager
	Router() HTTPRouter
}

type HTTPRouter interface {
	Add(method, path string, handler FastHTTPHandler, config *RouteConfig)
	Group(prefix string) GroupBuilder
	GET(path string, handler FastHTTPHandler) RouteBuilder
	POST(path string, handler FastHTTPHandler) RouteBuilder
	DELETE(path string, handler FastHTTPHandler) RouteBuilder
	Routes() []RouteInfo
}

type RouteBuilder interface {
	WithMiddlewares(names ...string) RouteBuilder
	WithoutMiddlewares(names ...string) RouteBuilder
	WithTimeout(duration time.Duration) RouteBuilder
}

type GroupBuilder interface {
	WithMiddlewares(names ...string) GroupBuilder
	WithoutMiddlewares(names ...string) GroupBuilder
	WithTimeout(duration time.Duration) GroupBuilder
	GET(path string, handler FastHTTPHandler) RouteBuilder
	POST(path string, handler FastHTTPHandler) RouteBuilder
	DELETE(path string, handler FastHTTPHandler) RouteBuilder
	Group(prefix string) GroupBuilder
}

// RouteConfig is shared by pointer between the builder and the router so
// builder calls made after registration still apply.
type RouteConfig struct {
	Middlewares         []string
	DisabledMiddlewares []string
	Timeout             time.Duration
}

type RouteInfo struct {
	Method  string
	Path    string
	Handler FastHTTPHandler
	Config  *RouteConfig
}

// RoutePatternKey is the ctx user value holding the matched route pattern,
// e.g. "/api/history/{id}".
const RoutePatternKey = "route_pattern"

// RouteTimeoutKey holds the route's time.Duration budget when the route
// was registered WithTimeout.
const RouteTimeoutKey = "route_timeout"
