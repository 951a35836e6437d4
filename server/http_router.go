package server

import (
	"sort"
	"strings"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

var supportedMethods = map[string]bool{
	fasthttp.MethodGet:     true,
	fasthttp.MethodPost:    true,
	fasthttp.MethodPut:     true,
	fasthttp.MethodDelete:  true,
	fasthttp.MethodPatch:   true,
	fasthttp.MethodOptions: true,
}

type compiledRoute struct {
	pattern  string
	segments []string
	handlers map[string]*types.RouteInfo
}

// Router matches static paths by map lookup and parameterized paths
// ("/api/history/{id}") segment by segment. Matched parameters and the
// route pattern are stored as ctx user values.
type Router struct {
	mu          sync.RWMutex
	middlewares types.MiddlewareManager
	static      map[string]*compiledRoute
	dynamic     []*compiledRoute
	routes      []types.RouteInfo
}

func NewRouter(middlewares types.MiddlewareManager) *Router {
	return &Router{
		middlewares: middlewares,
		static:      make(map[string]*compiledRoute),
	}
}

func (r *Router) Add(method, path string, handler types.FastHTTPHandler, config *types.RouteConfig) {
	if !supportedMethods[method] || handler == nil {
		return
	}
	if config == nil {
		config = &types.RouteConfig{}
	}

	path = normalizePath(path)
	info := &types.RouteInfo{Method: method, Path: path, Handler: handler, Config: config}

	r.mu.Lock()
	defer r.mu.Unlock()

	route := r.lookupPatternLocked(path)
	if route == nil {
		route = &compiledRoute{
			pattern:  path,
			segments: splitPath(path),
			handlers: make(map[string]*types.RouteInfo),
		}
		if isDynamic(path) {
			r.dynamic = append(r.dynamic, route)
			// Routes with more literal segments win over parameters.
			sort.SliceStable(r.dynamic, func(i, j int) bool {
				return literalCount(r.dynamic[i].segments) > literalCount(r.dynamic[j].segments)
			})
		} else {
			r.static[path] = route
		}
	}

	route.handlers[method] = info
	r.routes = append(r.routes, *info)
}

func (r *Router) Group(prefix string) types.GroupBuilder {
	return &GroupBuilder{router: r, prefix: prefix, config: &types.RouteConfig{}}
}

func (r *Router) GET(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return r.route(fasthttp.MethodGet, path, handler)
}

func (r *Router) POST(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return r.route(fasthttp.MethodPost, path, handler)
}

func (r *Router) DELETE(path string, handler types.FastHTTPHandler) types.RouteBuilder {
	return r.route(fasthttp.MethodDelete, path, handler)
}

func (r *Router) Routes() []types.RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]types.RouteInfo, len(r.routes))
	copy(routes, r.routes)
	return routes
}

func (r *Router) route(method, path string, handler types.FastHTTPHandler) types.RouteBuilder {
	config := &types.RouteConfig{}
	r.Add(method, path, handler, config)
	return &RouteBuilder{config: config}
}

// Handler resolves the request and runs it through the middleware chain.
// OPTIONS on a known path runs the chain with an empty handler so CORS
// can answer preflight requests.
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := normalizePath(utils.BytesToString(ctx.Path()))

	route, params := r.match(path)
	if route == nil {
		r.execute(ctx, utils.CreateNotFoundResponse, nil)
		return
	}

	ctx.SetUserValue(types.RoutePatternKey, route.pattern)
	for name, value := range params {
		ctx.SetUserValue(name, value)
	}

	info, exists := route.handlers[method]
	switch {
	case exists:
		if info.Config.Timeout > 0 {
			ctx.SetUserValue(types.RouteTimeoutKey, info.Config.Timeout)
		}
		r.execute(ctx, info.Handler, info.Config)
	case method == fasthttp.MethodOptions:
		r.execute(ctx, func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusNoContent) }, nil)
	default:
		ctx.Response.Header.Set(fasthttp.HeaderAllow, allowedMethods(route))
		r.execute(ctx, utils.CreateMethodNotAllowedResponse, nil)
	}
}

func (r *Router) execute(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig) {
	if r.middlewares == nil {
		handler(ctx)
		return
	}
	r.middlewares.Execute(ctx, handler, config)
}

func (r *Router) match(path string) (*compiledRoute, map[string]string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if route, exists := r.static[path]; exists {
		return route, nil
	}

	segments := splitPath(path)
	for _, route := range r.dynamic {
		if params, ok := matchSegments(route.segments, segments); ok {
			return route, params
		}
	}

	return nil, nil
}

func (r *Router) lookupPatternLocked(path string) *compiledRoute {
	if route, exists := r.static[path]; exists {
		return route
	}
	for _, route := range r.dynamic {
		if route.pattern == path {
			return route
		}
	}
	return nil
}

func matchSegments(pattern, path []string) (map[string]string, bool) {
	if len(pattern) != len(path) {
		return nil, false
	}

	var params map[string]string
	for i, segment := range pattern {
		if name, ok := paramName(segment); ok {
			if path[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string, 2)
			}
			params[name] = path[i]
			continue
		}
		if segment != path[i] {
			return nil, false
		}
	}

	return params, true
}

func paramName(segment string) (string, bool) {
	if len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}' {
		return segment[1 : len(segment)-1], true
	}
	if len(segment) > 1 && segment[0] == ':' {
		return segment[1:], true
	}
	return "", false
}

func allowedMethods(route *compiledRoute) string {
	methods := make([]string, 0, len(route.handlers))
	for method := range route.handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

func isDynamic(path string) bool {
	return strings.ContainsAny(path, "{:")
}

func literalCount(segments []string) int {
	count := 0
	for _, segment := range segments {
		if _, ok := paramName(segment); !ok {
			count++
		}
	}
	return count
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if path[0] != '/' {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
