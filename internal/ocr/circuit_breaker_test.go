package ocr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "test", FailureThreshold: 3, SuccessThreshold: 1,
		Timeout: time.Hour, MaxTimeout: time.Hour,
	})
	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return failing })
		require.Equal(t, failing, err)
	}
	assert.Equal(t, CircuitOpen, cb.GetState())
}

func TestCircuitBreaker_RejectsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "test", FailureThreshold: 1, SuccessThreshold: 1,
		Timeout: time.Hour, MaxTimeout: time.Hour,
	})
	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, CircuitOpen, cb.GetState())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.False(t, called)
	assert.Equal(t, ErrCircuitOpen, err)
}

func TestCircuitBreaker_ClosesAfterSuccessesInHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name: "test", FailureThreshold: 1, SuccessThreshold: 1,
		Timeout: time.Millisecond, MaxTimeout: time.Second,
	})
	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, CircuitOpen, cb.GetState())

	time.Sleep(2 * time.Millisecond)
	err := cb.Call(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.GetState())
}
