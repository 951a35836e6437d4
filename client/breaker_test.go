package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cb := NewCircuitBreaker(&types.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenRequests: 2,
	}, logger.NewNop(), "model")
	cb.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, StateBreakerClosed, cb.State())

	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateBreakerClosed, cb.State(), "a success resets the failure streak")

	cb.RecordFailure()
	assert.Equal(t, StateBreakerOpen, cb.State())
	assert.False(t, cb.CanExecute())

	now = now.Add(30 * time.Second)
	assert.True(t, cb.CanExecute())
	assert.Equal(t, StateBreakerHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateBreakerOpen, cb.State())

	now = now.Add(time.Minute)
	assert.True(t, cb.CanExecute())
	cb.RecordSuccess()
	assert.Equal(t, StateBreakerHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, StateBreakerClosed, cb.State())
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	cb := NewCircuitBreaker(nil, logger.NewNop(), "llm")

	for i := 0; i < 100; i++ {
		cb.RecordFailure()
	}

	assert.True(t, cb.CanExecute())
	assert.Equal(t, "disabled", cb.StateString())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(&types.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1}, logger.NewNop(), "model")

	cb.RecordFailure()
	assert.Equal(t, "open", cb.StateString())

	cb.Reset()
	assert.Equal(t, "closed", cb.StateString())
	assert.True(t, cb.CanExecute())
}

func TestResponseClassification(t *testing.T) {
	assert.True(t, IsSuccessfulResponse(200, nil))
	assert.True(t, IsSuccessfulResponse(404, nil))
	assert.False(t, IsSuccessfulResponse(429, nil))
	assert.False(t, IsSuccessfulResponse(500, nil))

	assert.True(t, IsRetryable(503, nil))
	assert.False(t, IsRetryable(500, nil))
	assert.True(t, IsCircuitBreakerFailure(500, nil))
	assert.False(t, IsCircuitBreakerFailure(404, nil))
}
