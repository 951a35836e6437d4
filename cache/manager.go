package cache

import (
	"time"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

const (
	ContributionsCache = "contributions"
	ExplanationsCache  = "explanations"
)

var customCacheCreators = make(map[string]types.CacheManagerCreator)

func RegisterCacheManager(cacheManagerName string, creator types.CacheManagerCreator) {
	customCacheCreators[cacheManagerName] = creator
}

// NewStore builds one named store on the configured backend and wraps it
// with operation metrics. Each call returns an independent instance.
func NewStore(name string, config *types.CacheConfig, logger types.Logger, metrics types.MetricsManager) (types.CacheManager, error) {
	if config == nil {
		return nil, types.ErrConfigIsNil
	}

	var impl types.CacheManager
	var err error

	switch config.Type {
	case "", "memory":
		impl, err = newMemoryFromConfig(name, config, logger)
	case "redis":
		impl, err = newRedisFromConfig(name, config, logger)
	default:
		creator, exists := customCacheCreators[config.Type]
		if !exists {
			return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", config.Type)
		}
		impl, err = creator(name, config, logger)
	}

	if err != nil {
		return nil, err
	}

	return newInstrumentedCacheManager(metrics, impl), nil
}

type instrumentedCacheManager struct {
	impl    types.CacheManager
	metrics types.MetricsManager
}

func newInstrumentedCacheManager(metrics types.MetricsManager, impl types.CacheManager) types.CacheManager {
	return &instrumentedCacheManager{
		impl:    impl,
		metrics: metrics,
	}
}

func (icm *instrumentedCacheManager) Name() string {
	return icm.impl.Name()
}

func (icm *instrumentedCacheManager) Get(key string) (interface{}, bool) {
	start := time.Now()
	value, exists := icm.impl.Get(key)

	result := "miss"
	if exists {
		result = "hit"
	}

	icm.recordMetric("get", result, time.Since(start))
	return value, exists
}

func (icm *instrumentedCacheManager) Set(key string, value interface{}) {
	start := time.Now()
	icm.impl.Set(key, value)
	icm.recordMetric("set", "success", time.Since(start))
}

func (icm *instrumentedCacheManager) Len() int {
	n := icm.impl.Len()
	icm.metrics.Gauge("cache_items", map[string]string{"cache": icm.impl.Name()}).Set(float64(n))
	return n
}

func (icm *instrumentedCacheManager) Sweep() int {
	start := time.Now()
	removed := icm.impl.Sweep()
	icm.recordMetric("sweep", "success", time.Since(start))
	icm.metrics.Counter("cache_expired_total", map[string]string{"cache": icm.impl.Name()}).Add(float64(removed))
	return removed
}

func (icm *instrumentedCacheManager) Start() error {
	start := time.Now()
	err := icm.impl.Start()

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("start", result, time.Since(start))
	return err
}

func (icm *instrumentedCacheManager) Stop() error {
	return icm.impl.Stop()
}

func (icm *instrumentedCacheManager) IsRunning() bool {
	return icm.impl.IsRunning()
}

// Stats forwards to the backend when it reports statistics.
func (icm *instrumentedCacheManager) Stats() (types.CacheStats, bool) {
	if reporter, ok := icm.impl.(interface{ Stats() types.CacheStats }); ok {
		return reporter.Stats(), true
	}
	return types.CacheStats{}, false
}

func (icm *instrumentedCacheManager) recordMetric(operation, result string, duration time.Duration) {
	icm.metrics.Counter("cache_operations_total", map[string]string{
		"cache":     icm.impl.Name(),
		"operation": operation,
		"result":    result,
	}).Inc()

	icm.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"cache": icm.impl.Name(), "operation": operation},
	).Observe(duration.Seconds())
}

// Stats reports statistics for any store built by NewStore.
func Stats(store types.CacheManager) (types.CacheStats, bool) {
	switch s := store.(type) {
	case *instrumentedCacheManager:
		return s.Stats()
	case interface{ Stats() types.CacheStats }:
		return s.Stats(), true
	default:
		return types.CacheStats{}, false
	}
}
