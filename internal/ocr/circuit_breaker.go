package ocr

import (
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // normal operation
	CircuitOpen                         // blocking calls
	CircuitHalfOpen                     // probing for recovery
)

// CircuitBreaker implements the circuit breaker pattern around the OCR
// external collaborator: it wraps Tesseract invocations so repeated
// engine failures stop retrying immediately instead of paying the
// engine-init cost on every call.
type CircuitBreaker struct {
	name                 string
	failureThreshold     int
	successThreshold     int
	timeout              time.Duration
	maxTimeout           time.Duration
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailureTime      time.Time
	state                CircuitState
	mutex                sync.RWMutex
	totalRequests        int64
	successfulRequests   int64
	failedRequests       int64
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	MaxTimeout       time.Duration
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:             config.Name,
		failureThreshold: config.FailureThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		maxTimeout:       config.MaxTimeout,
		state:            CircuitClosed,
	}
}

// Call runs fn through the breaker. While open, it returns
// ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allowRequest() {
		return ErrCircuitOpen
	}
	cb.incrementTotalRequests()
	err := fn()
	cb.recordResult(err == nil)
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if now.Sub(cb.lastFailureTime) > cb.timeout {
			cb.state = CircuitHalfOpen
			cb.consecutiveSuccesses = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses++
		cb.successfulRequests++
		if cb.state == CircuitHalfOpen && cb.consecutiveSuccesses >= cb.successThreshold {
			cb.state = CircuitClosed
			cb.consecutiveSuccesses = 0
		}
		return
	}

	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++
	cb.failedRequests++
	cb.lastFailureTime = time.Now()
	if cb.consecutiveFailures >= cb.failureThreshold {
		cb.state = CircuitOpen
		newTimeout := cb.timeout * time.Duration(cb.consecutiveFailures)
		if newTimeout > cb.maxTimeout {
			newTimeout = cb.maxTimeout
		}
		cb.timeout = newTimeout
	}
}

func (cb *CircuitBreaker) incrementTotalRequests() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.totalRequests++
}

// GetState returns the current circuit state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

// GetStats returns a snapshot of the breaker's counters.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	var successRate float64
	if cb.totalRequests > 0 {
		successRate = float64(cb.successfulRequests) / float64(cb.totalRequests)
	}
	return CircuitBreakerStats{
		Name:                cb.name,
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		TotalRequests:       cb.totalRequests,
		SuccessfulRequests:  cb.successfulRequests,
		FailedRequests:      cb.failedRequests,
		SuccessRate:         successRate,
		IsOpen:              cb.state == CircuitOpen,
	}
}

// Reset manually returns the breaker to CircuitClosed.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.state = CircuitClosed
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
}

// CircuitBreakerStats is a read-only snapshot of a breaker's counters.
type CircuitBreakerStats struct {
	Name                string
	State               CircuitState
	ConsecutiveFailures int
	TotalRequests       int64
	SuccessfulRequests  int64
	FailedRequests      int64
	SuccessRate         float64
	IsOpen              bool
}

// ErrCircuitOpen is returned by Call while the breaker is open.
var ErrCircuitOpen = &CircuitBreakerError{Message: "ocr circuit breaker is open"}

// CircuitBreakerError is the error type raised by the breaker.
type CircuitBreakerError struct {
	Message string
}

func (e *CircuitBreakerError) Error() string {
	return e.Message
}
