package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const defaultCheckTimeout = 5 * time.Second

type Manager struct {
	ctx          context.Context
	cancel       context.CancelFunc
	config       types.ConfigManager
	logger       types.Logger
	router       types.HTTPRouter
	checkers     map[string]types.HealthChecker
	results      map[string]types.HealthCheck
	startTime    time.Time
	mu           sync.RWMutex
	state        atomic.Value
	checkTimeout time.Duration
}

func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, router types.HTTPRouter) (*Manager, error) {
	if config == nil || config.GetConfig() == nil {
		return nil, types.ErrConfigIsNil
	}

	managerCtx, cancel := context.WithCancel(ctx)

	checkTimeout := defaultCheckTimeout
	if healthConfig := config.GetConfig().Health; healthConfig != nil && healthConfig.Timeout > 0 {
		checkTimeout = healthConfig.Timeout
	}

	manager := &Manager{
		ctx:          managerCtx,
		cancel:       cancel,
		config:       config,
		logger:       logger,
		router:       router,
		checkers:     make(map[string]types.HealthChecker),
		results:      make(map[string]types.HealthCheck),
		checkTimeout: checkTimeout,
	}

	manager.state.Store(StateStopped)

	return manager, nil
}

func (hm *Manager) RegisterChecker(name string, checker types.HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkers[name] = checker
}

func (hm *Manager) Check(ctx context.Context) types.HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]types.HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, hm.checkTimeout)
	defer cancel()

	g, gCtx := errgroup.WithContext(checkCtx)
	results := make(map[string]types.HealthCheck, len(checkers))
	var resultMu sync.Mutex

	for name, checker := range checkers {
		name, checker := name, checker
		g.Go(func() error {
			result := hm.executeCheck(gCtx, name, checker)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	hm.mu.Lock()
	hm.results = results
	hm.mu.Unlock()

	return hm.buildReport(results)
}

// LastResults returns the outcome of the most recent Check.
func (hm *Manager) LastResults() map[string]types.HealthCheck {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	results := make(map[string]types.HealthCheck, len(hm.results))
	for name, result := range hm.results {
		results[name] = result
	}
	return results
}

func (hm *Manager) Start() error {
	if !hm.transitionState(StateStopped, StateStarting) {
		hm.logger.Warn("Health manager is already running")
		return types.ErrServerAlreadyRunning
	}

	hm.startTime = time.Now()
	if hm.router != nil {
		hm.registerRoutes()
	}

	hm.setState(StateRunning)

	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	hm.logger.Info("Health manager started", zap.Strings("checkers", names))
	return nil
}

func (hm *Manager) Stop() error {
	if !hm.transitionState(StateRunning, StateStopping) {
		hm.logger.Warn("Health manager is not running")
		return types.ErrServerNotRunning
	}

	hm.cancel()

	hm.mu.Lock()
	hm.checkers = make(map[string]types.HealthChecker)
	hm.mu.Unlock()

	hm.setState(StateStopped)
	hm.logger.Info("Health manager stopped gracefully")

	return nil
}

func (hm *Manager) IsRunning() bool {
	return hm.getState() == StateRunning
}

func (hm *Manager) getState() State {
	return hm.state.Load().(State)
}

func (hm *Manager) setState(newState State) {
	hm.state.Store(newState)
}

func (hm *Manager) transitionState(from, to State) bool {
	return hm.state.CompareAndSwap(from, to)
}

func (hm *Manager) registerRoutes() {
	config := &types.RouteConfig{
		Timeout:             hm.checkTimeout + time.Second,
		DisabledMiddlewares: []string{"rate_limit", "compression"},
	}

	hm.router.Add(fasthttp.MethodGet, "/health", hm.handleLiveness, config)
	hm.router.Add(fasthttp.MethodGet, "/health/checks", hm.handleHealth, config)
	hm.router.Add(fasthttp.MethodGet, "/version", hm.handleVersion, config)
}

func (hm *Manager) handleLiveness(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Fraud Detection API is running",
	})
}

func (hm *Manager) handleVersion(ctx *fasthttp.RequestCtx) {
	name, _ := hm.config.GetValue("name", "").(string)
	version, _ := hm.config.GetValue("version", "unknown").(string)

	utils.WriteJSON(ctx, fasthttp.StatusOK, types.VersionInfo{
		Name:      name,
		Version:   version,
		GoVersion: goVersion(),
		BuildInfo: getBuildInfo(),
	})
}

func (hm *Manager) handleHealth(ctx *fasthttp.RequestCtx) {
	if !hm.IsRunning() {
		utils.WriteError(ctx, fasthttp.StatusServiceUnavailable, "health manager is not running")
		return
	}

	report := hm.Check(ctx)

	status := fasthttp.StatusOK
	if report.Status == types.StatusUnhealthy {
		status = fasthttp.StatusServiceUnavailable
	}

	utils.WriteJSON(ctx, status, report)
}

func (hm *Manager) executeCheck(ctx context.Context, name string, checker types.HealthChecker) types.HealthCheck {
	start := time.Now()

	resultChan := make(chan types.HealthCheck, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultChan <- types.HealthCheck{
					Status:  types.StatusUnhealthy,
					Message: fmt.Sprintf("Health check panicked: %v", r),
				}
			}
		}()

		resultChan <- checker(ctx)
	}()

	var result types.HealthCheck

	select {
	case result = <-resultChan:
	case <-hm.ctx.Done():
		result = types.HealthCheck{
			Status:  types.StatusUnhealthy,
			Message: "Health manager shutting down",
		}
	case <-ctx.Done():
		result = types.HealthCheck{
			Status:  types.StatusUnhealthy,
			Message: "Health check timeout",
		}
		hm.logger.Warn("Health check timed out", zap.String("checker", name))
	}

	result.Name = name
	result.LastCheck = time.Now()
	result.Duration = time.Since(start)

	return result
}

func (hm *Manager) buildReport(results map[string]types.HealthCheck) types.HealthReport {
	config := hm.config.GetConfig()

	overallStatus := types.StatusHealthy
	for _, result := range results {
		if result.Status == types.StatusHealthy {
			continue
		}
		if result.Critical {
			overallStatus = types.StatusUnhealthy
			continue
		}
		if overallStatus == types.StatusHealthy {
			overallStatus = types.StatusDegraded
		}
	}

	return types.HealthReport{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Uptime:    time.Since(hm.startTime).Truncate(time.Second).String(),
		Service: types.ServiceInfo{
			Name:    config.Name,
			Version: config.Version,
		},
		Checks: results,
	}
}
