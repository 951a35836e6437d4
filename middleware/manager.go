package middleware

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

const MaxMiddlewares = 64

const (
	NameRecovery    = "recovery"
	NameMetadata    = "metadata"
	NameLogging     = "logging"
	NameCORS        = "cors"
	NameBodyLimit   = "body_limit"
	NameRateLimit   = "rate_limit"
	NameCompression = "compression"
)

// OptIn is implemented by middlewares that only run on routes naming them
// in RouteConfig.Middlewares.
type OptIn interface {
	OptIn() bool
}

type entry struct {
	name       string
	middleware types.Middleware
	weight     int
}

type chain func(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig)

// Manager runs registered middlewares in ascending weight order. Each
// route gets a bit mask of active middlewares; the chain for a mask is
// built once and reused.
type Manager struct {
	logger      types.Logger
	metrics     types.MetricsManager
	mu          sync.Mutex
	pending     map[string]types.Middleware
	ordered     []entry
	nameToIndex map[string]int
	defaultMask uint64
	chains      sync.Map
	finalized   atomic.Bool
}

func NewManager(logger types.Logger, metrics types.MetricsManager) *Manager {
	return &Manager{
		logger:      logger,
		metrics:     metrics,
		pending:     make(map[string]types.Middleware),
		nameToIndex: make(map[string]int),
	}
}

// RegisterFromConfig registers every enabled built-in middleware and
// finalizes the chain.
func (m *Manager) RegisterFromConfig(config *types.MiddlewaresConfig) error {
	if config == nil || !config.Enabled {
		return m.Finalize()
	}

	builtins := []struct {
		item *types.MiddlewareItemConfig
		make func(item *types.MiddlewareItemConfig) types.Middleware
	}{
		{config.Recovery, func(item *types.MiddlewareItemConfig) types.Middleware {
			return NewRecoveryMiddleware(item, m.logger, m.metrics)
		}},
		{config.Metadata, func(item *types.MiddlewareItemConfig) types.Middleware {
			return NewMetadataMiddleware(item, m.logger, m.metrics)
		}},
		{config.Logging, func(item *types.MiddlewareItemConfig) types.Middleware {
			return NewLoggingMiddleware(item, m.logger, m.metrics)
		}},
		{config.CORS, func(item *types.MiddlewareItemConfig) types.Middleware {
			return NewCORSMiddleware(item, m.logger, m.metrics)
		}},
		{config.BodyLimit, func(item *types.MiddlewareItemConfig) types.Middleware {
			return NewBodyLimitMiddleware(item, m.logger, m.metrics)
		}},
		{config.RateLimit, func(item *types.MiddlewareItemConfig) types.Middleware {
			return NewRateLimitMiddleware(item, m.logger, m.metrics)
		}},
		{config.Compression, func(item *types.MiddlewareItemConfig) types.Middleware {
			return NewCompressionMiddleware(item, m.logger, m.metrics)
		}},
	}

	for _, builtin := range builtins {
		if builtin.item == nil || !builtin.item.Enabled {
			continue
		}

		mw := builtin.make(builtin.item)
		if err := m.Register(mw); err != nil {
			return err
		}
		m.logger.Info("Middleware registered", zap.String("name", mw.Name()), zap.Int("weight", mw.Weight()))
	}

	return m.Finalize()
}

func (m *Manager) Register(middleware types.Middleware) error {
	if middleware == nil {
		return types.ErrHandlerIsNil
	}
	if m.finalized.Load() {
		return types.Errorf(types.ErrMiddlewareOrderInvalid, "cannot register %s after finalization", middleware.Name())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) >= MaxMiddlewares {
		return types.Errorf(types.ErrMiddlewareOrderInvalid, "maximum middleware count exceeded: %d", MaxMiddlewares)
	}

	m.pending[middleware.Name()] = middleware
	return nil
}

// Finalize fixes the execution order. Two middlewares may not share a
// weight.
func (m *Manager) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized.Load() {
		return types.Errorf(types.ErrMiddlewareOrderInvalid, "configuration already finalized")
	}

	weights := make(map[int]string, len(m.pending))
	ordered := make([]entry, 0, len(m.pending))
	for name, mw := range m.pending {
		if existing, exists := weights[mw.Weight()]; exists {
			return types.Errorf(types.ErrMiddlewareOrderInvalid, "duplicate weight %d for middlewares '%s' and '%s'", mw.Weight(), existing, name)
		}
		weights[mw.Weight()] = name
		ordered = append(ordered, entry{name: name, middleware: mw, weight: mw.Weight()})
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].weight < ordered[j].weight
	})

	m.ordered = ordered
	m.nameToIndex = make(map[string]int, len(ordered))
	m.defaultMask = 0
	for i, e := range ordered {
		m.nameToIndex[e.name] = i
		if optIn, ok := e.middleware.(OptIn); ok && optIn.OptIn() {
			continue
		}
		m.defaultMask |= 1 << uint(i)
	}
	m.pending = nil

	m.finalized.Store(true)
	return nil
}

func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.ordered))
	for _, e := range m.ordered {
		names = append(names, e.name)
	}
	return names
}

func (m *Manager) Execute(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig) {
	if !m.finalized.Load() {
		handler(ctx)
		return
	}

	mask := m.routeMask(config)
	if mask == 0 {
		handler(ctx)
		return
	}

	m.chainFor(mask)(ctx, handler, config)
}

func (m *Manager) routeMask(config *types.RouteConfig) uint64 {
	mask := m.defaultMask
	if config == nil {
		return mask
	}

	for _, name := range config.Middlewares {
		if index, exists := m.nameToIndex[name]; exists {
			mask |= 1 << uint(index)
		}
	}
	for _, name := range config.DisabledMiddlewares {
		if index, exists := m.nameToIndex[name]; exists {
			mask &^= 1 << uint(index)
		}
	}

	return mask
}

func (m *Manager) chainFor(mask uint64) chain {
	if compiled, ok := m.chains.Load(mask); ok {
		return compiled.(chain)
	}

	active := make([]types.Middleware, 0, len(m.ordered))
	for i, e := range m.ordered {
		if mask&(1<<uint(i)) != 0 {
			active = append(active, e.middleware)
		}
	}

	compiled, _ := m.chains.LoadOrStore(mask, compile(active))
	return compiled.(chain)
}

func compile(middlewares []types.Middleware) chain {
	return func(ctx *fasthttp.RequestCtx, handler types.FastHTTPHandler, config *types.RouteConfig) {
		var index int

		var next func(*fasthttp.RequestCtx)
		next = func(ctx *fasthttp.RequestCtx) {
			if index >= len(middlewares) {
				handler(ctx)
				return
			}

			mw := middlewares[index]
			index++
			mw.Handle(ctx, next, config)
		}

		next(ctx)
	}
}

func decodeParams[T any](item *types.MiddlewareItemConfig, target *T, logger types.Logger, name string) {
	if item == nil || item.Params == nil {
		return
	}
	if err := utils.UnmarshalConfig(item.Params, target); err != nil {
		logger.Error("Failed to unmarshal middleware config", zap.String("middleware", name), zap.Error(err))
	}
}

func weightOf(item *types.MiddlewareItemConfig, fallback int) int {
	if item == nil || item.Weight == 0 {
		return fallback
	}
	return item.Weight
}
