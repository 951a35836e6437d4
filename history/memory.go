package history

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type MemoryStore struct {
	records map[string]*types.HistoryRecord
	mutex   sync.RWMutex
	logger  types.Logger
	state   atomic.Value
}

func NewMemoryStore(_ *types.HistoryConfig, logger types.Logger) (*MemoryStore, error) {
	store := &MemoryStore{
		records: make(map[string]*types.HistoryRecord),
		logger:  logger,
	}

	store.state.Store(StateStopped)
	return store, nil
}

func (m *MemoryStore) Start() error {
	if !m.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServiceIsRunning
	}
	return nil
}

func (m *MemoryStore) Stop() error {
	if !m.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServiceIsNotRunning
	}

	m.mutex.Lock()
	m.records = make(map[string]*types.HistoryRecord)
	m.mutex.Unlock()

	return nil
}

func (m *MemoryStore) IsRunning() bool {
	return m.state.Load().(State) == StateRunning
}

func (m *MemoryStore) Save(_ context.Context, record *types.HistoryRecord) error {
	prepareRecord(record)

	stored := *record

	m.mutex.Lock()
	m.records[record.ID] = &stored
	m.mutex.Unlock()

	return nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]*types.HistoryRecord, error) {
	m.mutex.RLock()
	records := make([]*types.HistoryRecord, 0, len(m.records))
	for _, record := range m.records {
		copied := *record
		records = append(records, &copied)
	}
	m.mutex.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if limit = NormalizeLimit(limit); len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*types.HistoryRecord, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	record, exists := m.records[id]
	if !exists {
		return nil, types.Errorf(types.ErrHistoryNotFound, "id: %s", id)
	}

	copied := *record
	return &copied, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.records[id]; !exists {
		return types.Errorf(types.ErrHistoryNotFound, "id: %s", id)
	}

	delete(m.records, id)
	return nil
}

func (m *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	removed := 0
	for id, record := range m.records {
		if record.CreatedAt.Before(cutoff) {
			delete(m.records, id)
			removed++
		}
	}

	return removed, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return len(m.records), nil
}
