package client

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type ManagerState int32

const (
	ManagerStateStopped ManagerState = iota
	ManagerStateRunning
)

// Manager owns one HTTPClient per upstream so every upstream gets its own
// circuit breaker and connection pool.
type Manager struct {
	config  *types.ClientConfig
	logger  types.Logger
	metrics types.MetricsManager
	clients map[string]*HTTPClient
	mu      sync.RWMutex
	state   atomic.Value
}

func NewManager(config *types.ClientConfig, logger types.Logger, metrics types.MetricsManager) *Manager {
	if config == nil {
		config = &types.ClientConfig{}
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 30 * time.Second
	}

	m := &Manager{
		config:  config,
		logger:  logger,
		metrics: metrics,
		clients: make(map[string]*HTTPClient),
	}

	m.state.Store(ManagerStateStopped)

	return m
}

// Client returns the client registered under name, creating it on first
// use. Zero timeout or negative retries fall back to the manager defaults.
func (m *Manager) Client(name string, timeout time.Duration, retries int) *HTTPClient {
	m.mu.RLock()
	client, exists := m.clients[name]
	m.mu.RUnlock()
	if exists {
		return client
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists = m.clients[name]; exists {
		return client
	}

	if timeout <= 0 {
		timeout = m.config.DefaultTimeout
	}
	if retries < 0 {
		retries = m.config.DefaultRetries
	}

	client = NewHTTPClient(m.logger, m.metrics, name, &ServiceClientConfig{
		Timeout:        timeout,
		Retries:        retries,
		CircuitBreaker: m.config.CircuitBreaker,
	})
	m.clients[name] = client

	m.logger.Debug("HTTP client created",
		zap.String("service", name),
		zap.Duration("timeout", timeout),
		zap.Int("retries", retries))

	return client
}

func (m *Manager) Start() error {
	if !m.state.CompareAndSwap(ManagerStateStopped, ManagerStateRunning) {
		return types.ErrServerAlreadyRunning
	}

	m.logger.Info("Client manager started", zap.Strings("clients", m.names()))
	return nil
}

func (m *Manager) Stop() error {
	if !m.state.CompareAndSwap(ManagerStateRunning, ManagerStateStopped) {
		return types.ErrServerNotRunning
	}

	m.mu.RLock()
	clients := make([]*HTTPClient, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}

	m.logger.Info("Client manager stopped gracefully", zap.Int("clients_closed", len(clients)))
	return nil
}

func (m *Manager) IsRunning() bool {
	return m.state.Load().(ManagerState) == ManagerStateRunning
}

// BreakerStates reports the circuit breaker state of every client.
func (m *Manager) BreakerStates() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]string, len(m.clients))
	for name, client := range m.clients {
		states[name] = client.Breaker().StateString()
	}
	return states
}

func (m *Manager) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
