package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

const (
	Collection   = "predictions"
	DefaultLimit = 50
	MaxLimit     = 500
)

var customStoreCreators = make(map[string]types.HistoryStoreCreator)

func RegisterHistoryStore(storeType string, creator types.HistoryStoreCreator) {
	customStoreCreators[storeType] = creator
}

// NewStore opens the configured backend. A disabled history returns
// ErrHistoryIsDisabled so callers can run without one.
func NewStore(config *types.HistoryConfig, logger types.Logger, metrics types.MetricsManager) (types.HistoryStore, error) {
	if config == nil || !config.Enabled {
		return nil, types.ErrHistoryIsDisabled
	}

	var impl types.HistoryStore
	var err error

	switch config.Type {
	case "", "clover":
		impl, err = NewCloverStore(config, logger)
	case "memory":
		impl, err = NewMemoryStore(config, logger)
	default:
		creator, exists := customStoreCreators[config.Type]
		if !exists {
			return nil, types.Errorf(types.ErrInvalidParameter, "history type: %s", config.Type)
		}
		impl, err = creator(config, logger)
	}

	if err != nil {
		return nil, err
	}

	return newInstrumentedStore(logger, metrics, impl), nil
}

// NormalizeLimit clamps a requested page size to [1, MaxLimit], using
// DefaultLimit for zero or negative values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func prepareRecord(record *types.HistoryRecord) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}

type instrumentedStore struct {
	impl    types.HistoryStore
	logger  types.Logger
	metrics types.MetricsManager
}

func newInstrumentedStore(logger types.Logger, metrics types.MetricsManager, impl types.HistoryStore) types.HistoryStore {
	return &instrumentedStore{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *instrumentedStore) Start() error {
	if err := s.impl.Start(); err != nil {
		return err
	}

	s.logger.Info("History store started")
	return nil
}

func (s *instrumentedStore) Stop() error {
	if err := s.impl.Stop(); err != nil {
		s.logger.Error("Failed to stop history store", zap.Error(err))
		return err
	}

	s.logger.Info("History store stopped gracefully")
	return nil
}

func (s *instrumentedStore) IsRunning() bool {
	return s.impl.IsRunning()
}

func (s *instrumentedStore) Save(ctx context.Context, record *types.HistoryRecord) error {
	start := time.Now()
	err := s.impl.Save(ctx, record)
	s.observe("save", err, start)
	return err
}

func (s *instrumentedStore) List(ctx context.Context, limit int) ([]*types.HistoryRecord, error) {
	start := time.Now()
	records, err := s.impl.List(ctx, limit)
	s.observe("list", err, start)
	return records, err
}

func (s *instrumentedStore) Get(ctx context.Context, id string) (*types.HistoryRecord, error) {
	start := time.Now()
	record, err := s.impl.Get(ctx, id)
	s.observe("get", err, start)
	return record, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.impl.Delete(ctx, id)
	s.observe("delete", err, start)
	return err
}

func (s *instrumentedStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	start := time.Now()
	removed, err := s.impl.DeleteOlderThan(ctx, cutoff)
	s.observe("retention", err, start)
	return removed, err
}

func (s *instrumentedStore) Count(ctx context.Context) (int, error) {
	return s.impl.Count(ctx)
}

func (s *instrumentedStore) observe(operation string, err error, start time.Time) {
	result := "success"
	switch {
	case err == nil:
	case types.IsError(err, types.ErrHistoryNotFound):
		result = "not_found"
	default:
		result = "error"
	}

	labels := map[string]string{"operation": operation, "result": result}
	s.metrics.Counter("history_operations_total", labels).Inc()
	s.metrics.Histogram("history_operation_duration_seconds", nil, map[string]string{"operation": operation}).ObserveDuration(start)
}
