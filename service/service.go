package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/api"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/cache"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/client"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/config"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/cron"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/fraud"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/health"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/history"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/llm"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/metrics"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/middleware"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/model"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/ocr"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/server"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	JobCacheSweep       = "cache_sweep"
	JobHistoryRetention = "history_retention"
)

// Service owns every component of the fraud API and starts and stops them
// in dependency order.
type Service struct {
	ctx             context.Context
	cancel          context.CancelFunc
	done            chan struct{}
	wg              sync.WaitGroup
	state           atomic.Value
	shutdownTimeout time.Duration
	startTimeout    time.Duration

	config        *config.ConfigurationManager
	logger        *logger.Manager
	metrics       *metrics.Manager
	clients       *client.Manager
	contributions types.CacheManager
	explanations  types.CacheManager
	history       types.HistoryStore
	middlewares   *middleware.Manager
	server        *server.FastHTTPServer
	health        *health.Manager
	cron          *cron.Manager
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	if configPath == "" {
		return nil, types.ErrConfigInvalidPath
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, types.WrapError(err, "file does not exist")
	}

	configManager, err := config.NewConfigurationManager(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to load config")
	}

	return New(ctx, configManager)
}

// New wires a service around an already loaded configuration.
func New(ctx context.Context, configManager *config.ConfigurationManager) (*Service, error) {
	serviceCtx, cancel := context.WithCancel(ctx)

	s := &Service{
		ctx:             serviceCtx,
		cancel:          cancel,
		done:            make(chan struct{}),
		shutdownTimeout: 30 * time.Second,
		startTimeout:    60 * time.Second,
		config:          configManager,
	}
	s.state.Store(StateStopped)

	if err := s.build(); err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Service) build() error {
	cfg := s.config.GetConfig()
	if cfg == nil {
		return types.ErrConfigIsNil
	}

	var err error

	if s.logger, err = logger.NewManager(cfg.Logger); err != nil {
		return types.WrapError(err, "failed to create logger")
	}

	if s.metrics, err = metrics.NewManager(cfg.Metrics, s.logger); err != nil {
		return types.WrapError(err, "failed to create metrics manager")
	}

	s.clients = client.NewManager(cfg.Client, s.logger, s.metrics)

	modelClient := model.NewClient(s.clients.Client("model", cfg.Model.Timeout, cfg.Model.Retries), cfg.Model, s.logger)
	llmClient := llm.NewClient(s.clients.Client("llm", cfg.LLM.Timeout, cfg.LLM.Retries), cfg.LLM, s.logger)
	ai := llm.NewService(llmClient, cfg.LLM, s.logger)
	ocrService := ocr.NewService(ocr.NewTesseract(cfg.OCR), cfg.OCR, s.logger)

	if s.contributions, err = cache.NewStore(cache.ContributionsCache, cfg.Cache, s.logger, s.metrics); err != nil {
		return types.WrapError(err, "failed to create contributions cache")
	}
	if s.explanations, err = cache.NewStore(cache.ExplanationsCache, cfg.Cache, s.logger, s.metrics); err != nil {
		return types.WrapError(err, "failed to create explanations cache")
	}

	s.history, err = history.NewStore(cfg.History, s.logger, s.metrics)
	switch {
	case types.IsError(err, types.ErrHistoryIsDisabled):
		s.history = nil
		s.logger.Info("Prediction history disabled")
	case err != nil:
		return types.WrapError(err, "failed to create history store")
	}

	detector := fraud.NewDetector(modelClient, ai, s.contributions, s.explanations, s.history, s.metrics, s.logger, fraud.Options{
		VNDToUSDRate: cfg.Model.VNDToUSDRate,
		TopK:         cfg.Model.TopK,
	})

	s.middlewares = middleware.NewManager(s.logger, s.metrics)
	if err = s.middlewares.RegisterFromConfig(cfg.Middlewares); err != nil {
		return types.WrapError(err, "failed to register middlewares")
	}

	if cfg.Server == nil {
		return types.Errorf(types.ErrConfigIsNil, "server")
	}
	if s.server, err = server.NewHTTPServer(cfg.Server.HTTP, s.logger, s.middlewares); err != nil {
		return types.WrapError(err, "failed to create HTTP server")
	}
	router := s.server.Router()

	if cfg.Health != nil && cfg.Health.Enabled {
		if s.health, err = health.NewManager(s.ctx, s.config, s.logger, router); err != nil {
			return types.WrapError(err, "failed to create health manager")
		}

		s.health.RegisterChecker("model", health.PingChecker(true, modelClient.Health))
		s.health.RegisterChecker("llm", health.ConfiguredChecker(llmClient.Configured, types.ErrLLMNotConfigured.Error()))
		s.health.RegisterChecker("ocr", health.PingChecker(false, func(context.Context) error {
			return ocrService.Available()
		}))
		s.health.RegisterChecker("cache", health.CacheChecker(s.contributions, s.explanations))
		s.health.RegisterChecker("history", health.HistoryChecker(s.history))
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, s.metrics.Handler()).WithoutMiddlewares(middleware.NameRateLimit, middleware.NameCompression)
	}

	api.NewHandlers(detector, ai, ocrService, s.history, s.logger).Register(router)

	if cfg.Cron != nil && cfg.Cron.Enabled {
		if s.cron, err = cron.NewManager(cfg.Cron, s.logger, s.metrics); err != nil {
			return types.WrapError(err, "failed to create cron manager")
		}
		if err = s.registerJobs(cfg); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) registerJobs(cfg *types.ServiceConfig) error {
	if cfg.Cache.SweepSchedule != "" {
		err := s.cron.Add(JobCacheSweep, cfg.Cache.SweepSchedule, func(context.Context) error {
			removed := s.contributions.Sweep() + s.explanations.Sweep()
			if removed > 0 {
				s.logger.Debug("Cache sweep finished", zap.Int("removed", removed))
			}
			return nil
		})
		if err != nil {
			return types.WrapError(err, "failed to register cache sweep")
		}
	}

	if s.history != nil && cfg.History.CleanupSchedule != "" && cfg.History.Retention > 0 {
		retention := cfg.History.Retention
		err := s.cron.Add(JobHistoryRetention, cfg.History.CleanupSchedule, func(ctx context.Context) error {
			removed, err := s.history.DeleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if removed > 0 {
				s.logger.Info("History retention applied", zap.Int("removed", removed), zap.Duration("retention", retention))
			}
			return nil
		})
		if err != nil {
			return types.WrapError(err, "failed to register history retention")
		}
	}

	return nil
}

// Start brings every component up and blocks until the service is stopped
// by a signal, Stop or the parent context.
func (s *Service) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		s.logger.Warn("Service is already running")
		return types.ErrServiceIsRunning
	}

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				runErr = fmt.Errorf("service panic: %v", r)
				s.logger.Error("Service run panic", zap.Stack(string(buf[:n])))
				s.setState(StateStopped)
			}
		}()

		runErr = s.run()
	}()

	return runErr
}

func (s *Service) run() error {
	cfg := s.config.GetConfig()
	s.logger.Info("Starting service",
		zap.String("name", cfg.Name),
		zap.String("version", cfg.Version),
		zap.Any("cache_backend", s.config.GetValue("cache.type", "memory")),
		zap.Any("history_backend", s.config.GetValue("history.type", "disabled")),
		zap.Any("model_url", s.config.GetValue("model.base_url", "")),
	)

	ctx, cancel := context.WithTimeout(s.ctx, s.startTimeout)
	defer cancel()

	if err := s.startComponents(ctx); err != nil {
		s.setState(StateStopped)
		_ = s.stopComponents()
		return types.WrapError(err, "failed to start components")
	}

	s.setState(StateRunning)
	s.setupSignalHandling()

	s.wg.Add(1)
	go s.contextMonitor()

	s.logger.Info("Service started successfully", zap.String("addr", s.server.Addr()))

	<-s.done

	if err := s.stopComponents(); err != nil {
		s.logger.Error("Error during service shutdown", zap.Error(err))
	}

	s.wg.Wait()
	s.setState(StateStopped)

	s.logger.Info("Service stopped gracefully")
	return nil
}

func (s *Service) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		s.logger.Warn("Service is not running")
		return types.ErrServiceIsNotRunning
	}

	s.logger.Info("Stopping service...")
	s.cancel()

	return nil
}

func (s *Service) Done() <-chan struct{} {
	return s.done
}

func (s *Service) Context() context.Context {
	return s.ctx
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

// Router exposes the HTTP router, mainly for tests.
func (s *Service) Router() types.HTTPRouter {
	return s.server.Router()
}

func (s *Service) Addr() string {
	return s.server.Addr()
}

// Jobs lists the scheduled maintenance jobs, empty when cron is disabled.
func (s *Service) Jobs() []types.JobEntry {
	if s.cron == nil {
		return nil
	}
	return s.cron.Jobs()
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) {
	s.state.Store(newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Service) startComponents(ctx context.Context) error {
	for _, step := range []struct {
		name    string
		manager types.LifecycleManager
	}{
		{"config manager", s.config},
		{"logger", s.logger},
		{"metrics manager", s.metrics},
		{"client manager", s.clients},
	} {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step.manager.Start(); err != nil {
			return types.WrapError(err, "failed to start "+step.name)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	stores := []types.LifecycleManager{s.contributions, s.explanations}
	if s.history != nil {
		stores = append(stores, s.history)
	}
	for _, store := range stores {
		store := store
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return store.Start()
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return types.NewErrorf("component startup timeout: %v", ctx.Err())
		}
		return types.WrapError(err, "failed to start storage")
	}

	if s.health != nil {
		if err := s.health.Start(); err != nil {
			s.logger.Error("Failed to start health manager", zap.Error(err))
		}
	}

	if err := s.server.Start(); err != nil {
		return types.WrapError(err, "failed to start HTTP server")
	}

	if s.cron != nil {
		if err := s.cron.Start(); err != nil {
			s.logger.Error("Failed to start cron manager", zap.Error(err))
		}
	}

	s.logger.Info("All components started successfully")
	return nil
}

// stopComponents is safe after a partial start: components that never
// started report not-running and are skipped.
func (s *Service) stopComponents() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var errs []error

	s.logger.Info("Stopping service components...")

	if s.cron != nil && s.cron.IsRunning() {
		if err := s.cron.Stop(); err != nil {
			s.logger.Error("Failed to stop cron manager", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if s.server.IsRunning() {
		if err := s.server.Stop(); err != nil {
			s.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if s.health != nil && s.health.IsRunning() {
		if err := s.health.Stop(); err != nil {
			s.logger.Error("Failed to stop health manager", zap.Error(err))
			errs = append(errs, err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	running := []types.LifecycleManager{s.contributions, s.explanations, s.clients}
	if s.history != nil {
		running = append(running, s.history)
	}
	for _, manager := range running {
		manager := manager
		if !manager.IsRunning() {
			continue
		}
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				return manager.Stop()
			}
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			s.logger.Warn("Component shutdown timeout, some components may not have stopped gracefully")
		} else {
			errs = append(errs, err)
		}
	}

	for _, manager := range []types.LifecycleManager{s.metrics, s.config} {
		if manager.IsRunning() {
			if err := manager.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return types.NewErrorf("errors during shutdown: %v", errs)
	}

	s.logger.Info("All components stopped successfully")

	if s.logger.IsRunning() {
		_ = s.logger.Stop()
	}

	return nil
}

func (s *Service) setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case sig := <-sigChan:
			s.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			if s.transitionState(StateRunning, StateStopping) {
				s.cancel()
			}

		case <-s.ctx.Done():
			s.logger.Info("Service context cancelled")
		}

		signal.Stop(sigChan)
	}()
}

func (s *Service) contextMonitor() {
	defer s.wg.Done()
	defer close(s.done)

	<-s.ctx.Done()

	switch err := s.ctx.Err(); {
	case types.IsError(err, context.Canceled):
		s.logger.Info("Service shutdown: context cancelled")
	case types.IsError(err, context.DeadlineExceeded):
		s.logger.Warn("Service shutdown: context deadline exceeded")
	default:
		s.logger.Info("Service shutdown: context done")
	}
}
