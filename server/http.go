package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const defaultShutdownTimeout = 10 * time.Second

type FastHTTPServer struct {
	logger          types.Logger
	router          *Router
	server          *fasthttp.Server
	listener        net.Listener
	httpConfig      *types.HTTPConfig
	state           atomic.Value
	shutdownTimeout time.Duration
	serveErr        chan error
}

func NewHTTPServer(config *types.HTTPConfig, logger types.Logger, middlewares types.MiddlewareManager) (*FastHTTPServer, error) {
	if config == nil {
		return nil, types.ErrConfigIsNil
	}

	shutdownTimeout := defaultShutdownTimeout
	if config.ShutdownTimeout > 0 {
		shutdownTimeout = time.Duration(config.ShutdownTimeout) * time.Second
	}

	server := &FastHTTPServer{
		logger:          logger,
		router:          NewRouter(middlewares),
		httpConfig:      config,
		shutdownTimeout: shutdownTimeout,
	}

	server.state.Store(StateStopped)

	return server, nil
}

func (h *FastHTTPServer) Router() types.HTTPRouter {
	return h.router
}

// Handler exposes the routing handler, mainly for in-memory tests.
func (h *FastHTTPServer) Handler() fasthttp.RequestHandler {
	return h.router.Handler
}

// Start binds the listener synchronously so address errors surface to the
// caller, then serves in the background.
func (h *FastHTTPServer) Start() error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	h.server = &fasthttp.Server{
		Handler:                      h.router.Handler,
		Name:                         "fraud-api",
		ReadTimeout:                  seconds(h.httpConfig.ReadTimeout, 30*time.Second),
		WriteTimeout:                 seconds(h.httpConfig.WriteTimeout, 60*time.Second),
		IdleTimeout:                  seconds(h.httpConfig.IdleTimeout, 120*time.Second),
		MaxRequestBodySize:           h.maxRequestBodySize(),
		TCPKeepalive:                 true,
		CloseOnShutdown:              true,
		DisablePreParseMultipartForm: true,
		Logger:                       fasthttpLogger{logger: h.logger},
	}

	addr := fmt.Sprintf("%s:%d", h.httpConfig.Host, h.httpConfig.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		h.setState(StateStopped)
		return types.Errorf(types.ErrServerStartFailed, "listen %s: %v", addr, err)
	}
	h.listener = listener
	h.serveErr = make(chan error, 1)

	go func() {
		err := h.server.Serve(listener)
		if err != nil {
			h.logger.Error("HTTP server failed", zap.Error(err))
		}
		h.serveErr <- err
	}()

	h.setState(StateRunning)

	h.logger.Info("HTTP server started", zap.String("address", listener.Addr().String()))

	return nil
}

func (h *FastHTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}
	defer h.setState(StateStopped)

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.ShutdownWithContext(ctx); err != nil {
		h.logger.Warn("Server stop timeout, some connections may not have closed gracefully", zap.Error(err))
		return types.Errorf(types.ErrServerStopFailed, "%v", err)
	}

	select {
	case <-h.serveErr:
	case <-ctx.Done():
	}

	h.logger.Info("HTTP server stopped gracefully")

	return nil
}

func (h *FastHTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

// Addr is the bound listener address, useful when the port is 0.
func (h *FastHTTPServer) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *FastHTTPServer) maxRequestBodySize() int {
	if h.httpConfig.MaxRequestBodySize > 0 {
		return h.httpConfig.MaxRequestBodySize
	}
	return 16 * 1024 * 1024
}

func (h *FastHTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *FastHTTPServer) setState(newState State) {
	h.state.Store(newState)
}

func (h *FastHTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}

func seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}

type fasthttpLogger struct {
	logger types.Logger
}

func (l fasthttpLogger) Printf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
