package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/utils"
)

type ManagerState int32

const (
	ManagerStateStopped ManagerState = iota
	ManagerStateRunning
)

// Manager hands out no-op instruments while disabled so callers never
// check whether metrics are configured.
type Manager struct {
	logger  types.Logger
	manager types.MetricsManager
	state   atomic.Value
}

var customMetricsCreators = sync.Map{}

func RegisterMetricsManager(metricsManagerName string, creator types.MetricsManagerCreator) {
	customMetricsCreators.Store(metricsManagerName, creator)
}

func NewManager(config *types.MetricsConfig, logger types.Logger) (*Manager, error) {
	wrapper := &Manager{logger: logger}
	wrapper.state.Store(ManagerStateStopped)

	if config == nil || !config.Enabled {
		return wrapper, nil
	}

	var manager types.MetricsManager
	var err error

	switch config.Type {
	case "prometheus":
		manager, err = NewPrometheusMetrics(config, logger)
	default:
		creator, exists := customMetricsCreators.Load(config.Type)
		if !exists {
			return nil, types.Errorf(types.ErrMetricsTypeUnknown, "type: %s", config.Type)
		}
		manager, err = creator.(types.MetricsManagerCreator)(config, logger)
	}

	if err != nil {
		return nil, types.WrapError(err, "failed to initialize metrics manager")
	}

	wrapper.manager = manager
	logger.Info("Metrics manager initialized", zap.String("type", config.Type))

	return wrapper, nil
}

// NewNoop returns a started manager without a backend.
func NewNoop() *Manager {
	m := &Manager{}
	m.state.Store(ManagerStateRunning)
	return m
}

func (w *Manager) Start() error {
	if !w.state.CompareAndSwap(ManagerStateStopped, ManagerStateRunning) {
		return types.ErrServerAlreadyRunning
	}

	if w.manager != nil {
		if err := w.manager.Start(); err != nil {
			w.state.Store(ManagerStateStopped)
			return types.WrapError(err, "failed to start metrics manager")
		}
	}

	return nil
}

func (w *Manager) Stop() error {
	if !w.state.CompareAndSwap(ManagerStateRunning, ManagerStateStopped) {
		return types.ErrServerNotRunning
	}

	if w.manager != nil {
		return w.manager.Stop()
	}

	return nil
}

func (w *Manager) IsRunning() bool {
	return w.state.Load().(ManagerState) == ManagerStateRunning
}

func (w *Manager) Enabled() bool {
	return w.manager != nil
}

func (w *Manager) Counter(name string, labels map[string]string) types.Counter {
	if w.manager != nil {
		return w.manager.Counter(name, labels)
	}
	return &emptyCounter{}
}

func (w *Manager) Gauge(name string, labels map[string]string) types.Gauge {
	if w.manager != nil {
		return w.manager.Gauge(name, labels)
	}
	return &emptyGauge{}
}

func (w *Manager) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	if w.manager != nil {
		return w.manager.Histogram(name, buckets, labels)
	}
	return &emptyHistogram{}
}

func (w *Manager) Handler() types.FastHTTPHandler {
	if w.manager != nil {
		return w.manager.Handler()
	}
	return func(ctx *fasthttp.RequestCtx) {
		utils.CreateNotFoundResponse(ctx)
	}
}

type emptyCounter struct{}

func (c *emptyCounter) Inc()          {}
func (c *emptyCounter) Add(_ float64) {}
func (c *emptyCounter) Get() float64  { return 0 }

type emptyGauge struct{}

func (g *emptyGauge) Set(_ float64) {}
func (g *emptyGauge) Inc()          {}
func (g *emptyGauge) Dec()          {}
func (g *emptyGauge) Add(_ float64) {}
func (g *emptyGauge) Get() float64  { return 0 }

type emptyHistogram struct{}

func (h *emptyHistogram) Observe(_ float64)           {}
func (h *emptyHistogram) ObserveDuration(_ time.Time) {}
func (h *emptyHistogram) GetCount() uint64            { return 0 }
func (h *emptyHistogram) GetSum() float64             { return 0 }
