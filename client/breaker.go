package client

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type CircuitBreakerState int32

const (
	StateBreakerClosed CircuitBreakerState = iota
	StateBreakerOpen
	StateBreakerHalfOpen
)

// CircuitBreaker trips after FailureThreshold consecutive failures and lets
// traffic through again once RecoveryTimeout has passed since the last one.
// HalfOpenRequests successes in a row close it; any failure reopens it.
type CircuitBreaker struct {
	config      types.CircuitBreakerConfig
	logger      types.Logger
	serviceName string
	now         func() time.Time

	mu        sync.Mutex
	state     CircuitBreakerState
	failures  int
	successes int
	lastFail  time.Time
}

func NewCircuitBreaker(config *types.CircuitBreakerConfig, logger types.Logger, serviceName string) *CircuitBreaker {
	cb := &CircuitBreaker{
		logger:      logger,
		serviceName: serviceName,
		now:         time.Now,
		state:       StateBreakerClosed,
	}

	if config != nil {
		cb.config = *config
	}
	if cb.config.FailureThreshold <= 0 {
		cb.config.FailureThreshold = 5
	}
	if cb.config.RecoveryTimeout <= 0 {
		cb.config.RecoveryTimeout = 30 * time.Second
	}
	if cb.config.HalfOpenRequests <= 0 {
		cb.config.HalfOpenRequests = 1
	}

	return cb
}

func (cb *CircuitBreaker) CanExecute() bool {
	if cb == nil || !cb.config.Enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateBreakerOpen:
		if cb.now().Sub(cb.lastFail) < cb.config.RecoveryTimeout {
			return false
		}
		cb.transitionTo(StateBreakerHalfOpen)
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil || !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateBreakerClosed:
		cb.failures = 0
	case StateBreakerHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenRequests {
			cb.transitionTo(StateBreakerClosed)
		}
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil || !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFail = cb.now()

	switch cb.state {
	case StateBreakerClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StateBreakerOpen)
		}
	case StateBreakerHalfOpen:
		cb.transitionTo(StateBreakerOpen)
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	if cb == nil {
		return StateBreakerClosed
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

func (cb *CircuitBreaker) StateString() string {
	if cb == nil || !cb.config.Enabled {
		return "disabled"
	}
	return stateToString(cb.State())
}

func (cb *CircuitBreaker) Reset() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.transitionTo(StateBreakerClosed)
}

func (cb *CircuitBreaker) transitionTo(state CircuitBreakerState) {
	if cb.state == state {
		return
	}

	previous := cb.state
	cb.state = state
	cb.successes = 0
	if state == StateBreakerClosed {
		cb.failures = 0
	}

	fields := []zap.Field{
		zap.String("service", cb.serviceName),
		zap.String("from", stateToString(previous)),
		zap.String("to", stateToString(state)),
	}
	if state == StateBreakerOpen {
		cb.logger.Warn("Circuit breaker opened", append(fields, zap.Int("failures", cb.failures))...)
		return
	}
	cb.logger.Info("Circuit breaker state changed", fields...)
}

func stateToString(state CircuitBreakerState) string {
	switch state {
	case StateBreakerClosed:
		return "closed"
	case StateBreakerOpen:
		return "open"
	case StateBreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// IsCircuitBreakerFailure reports whether an outcome means the upstream
// itself is in trouble.
func IsCircuitBreakerFailure(statusCode int, err error) bool {
	if err != nil {
		return true
	}

	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func IsRetryable(statusCode int, err error) bool {
	if err != nil {
		return true
	}

	switch statusCode {
	case 408, 429, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsSuccessfulResponse treats client errors other than 408 and 429 as a
// final answer that the caller has to interpret.
func IsSuccessfulResponse(statusCode int, err error) bool {
	if err != nil {
		return false
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return true
	case statusCode >= 400 && statusCode < 500:
		return statusCode != 429 && statusCode != 408
	default:
		return false
	}
}
