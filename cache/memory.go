package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

const (
	DefaultTTL      = 10 * time.Minute
	DefaultMaxItems = 256
)

type memoryEntry struct {
	value    interface{}
	storedAt time.Time
	seq      uint64
}

// MemoryCache is a size-bounded map with write-time TTL. Every operation,
// reads included, runs under a single exclusive lock because reads may
// purge expired entries.
type MemoryCache struct {
	name     string
	ttl      time.Duration
	maxItems int
	now      func() time.Time
	logger   types.Logger

	mu   sync.Mutex
	data map[string]*memoryEntry
	seq  uint64

	evictions atomic.Uint64
	expired   atomic.Uint64
	state     atomic.Value
}

type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now, mainly so tests can move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryCache) {
		m.now = now
	}
}

func WithLogger(logger types.Logger) MemoryOption {
	return func(m *MemoryCache) {
		m.logger = logger
	}
}

func NewMemoryCache(name string, ttl time.Duration, maxItems int, opts ...MemoryOption) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	m := &MemoryCache{
		name:     name,
		ttl:      ttl,
		maxItems: maxItems,
		now:      time.Now,
		data:     make(map[string]*memoryEntry, maxItems+1),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.state.Store(StateStopped)

	return m
}

func newMemoryFromConfig(name string, config *types.CacheConfig, logger types.Logger) (types.CacheManager, error) {
	return NewMemoryCache(name, config.TTL, config.MaxItems, WithLogger(logger)), nil
}

func (m *MemoryCache) Name() string {
	return m.name
}

func (m *MemoryCache) Start() error {
	if !m.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

// Stop releases every entry. The store stays usable and starts empty.
func (m *MemoryCache) Stop() error {
	if !m.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrServerNotRunning
	}

	m.mu.Lock()
	m.data = make(map[string]*memoryEntry, m.maxItems+1)
	m.mu.Unlock()

	return nil
}

func (m *MemoryCache) IsRunning() bool {
	return m.state.Load().(State) == StateRunning
}

func (m *MemoryCache) Get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists {
		return nil, false
	}

	if m.now().Sub(entry.storedAt) > m.ttl {
		delete(m.data, key)
		m.expired.Add(1)
		return nil, false
	}

	return entry.value, true
}

func (m *MemoryCache) Set(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.data[key] = &memoryEntry{
		value:    value,
		storedAt: m.now(),
		seq:      m.seq,
	}

	if len(m.data) > m.maxItems {
		m.evictOldestLocked(key)
	}
}

// evictOldestLocked removes the len-maxItems oldest entries in one pass.
// The key just written is never a victim.
func (m *MemoryCache) evictOldestLocked(keep string) {
	excess := len(m.data) - m.maxItems

	type candidate struct {
		key   string
		entry *memoryEntry
	}

	candidates := make([]candidate, 0, len(m.data)-1)
	for key, entry := range m.data {
		if key == keep {
			continue
		}
		candidates = append(candidates, candidate{key: key, entry: entry})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		if a.storedAt.Equal(b.storedAt) {
			return a.seq < b.seq
		}
		return a.storedAt.Before(b.storedAt)
	})

	if excess > len(candidates) {
		excess = len(candidates)
	}

	for _, victim := range candidates[:excess] {
		delete(m.data, victim.key)
	}

	m.evictions.Add(uint64(excess))

	if m.logger != nil {
		m.logger.Debug("Cache evicted oldest entries",
			zap.String("cache", m.name),
			zap.Int("evicted", excess),
			zap.Int("size", len(m.data)),
		)
	}
}

func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Sweep purges every expired entry and reports how many were removed.
func (m *MemoryCache) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, entry := range m.data {
		if now.Sub(entry.storedAt) > m.ttl {
			delete(m.data, key)
			removed++
		}
	}

	m.expired.Add(uint64(removed))
	return removed
}

func (m *MemoryCache) Stats() types.CacheStats {
	return types.CacheStats{
		Name:     m.name,
		Backend:  "memory",
		Items:    m.Len(),
		MaxItems: m.maxItems,
		TTL:      m.ttl,
	}
}

func (m *MemoryCache) Evictions() uint64 {
	return m.evictions.Load()
}
