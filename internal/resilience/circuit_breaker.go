// Package resilience guards calls to the Conduit API.
package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and not allowing requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed CircuitState = iota
	// StateOpen means the circuit has tripped and is rejecting requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the API has recovered.
	StateHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// StateChangeFunc is called after every state transition, outside the breaker lock.
type StateChangeFunc func(from, to CircuitState)

// CircuitBreakerConfig holds the configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in half-open state before closing.
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before transitioning to half-open.
	OpenTimeout time.Duration
	// OnStateChange is optional.
	OnStateChange StateChangeFunc
}

// DefaultCircuitBreakerConfig returns the defaults used for the Conduit API.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// CircuitBreakerStats holds statistics about the circuit breaker.
type CircuitBreakerStats struct {
	State           CircuitState
	TotalSuccesses  int64
	TotalFailures   int64
	TotalRejected   int64
	ConsecFailures  int
	ConsecSuccesses int
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	mu sync.Mutex

	config CircuitBreakerConfig

	state           CircuitState
	consecFailures  int
	consecSuccesses int
	openedAt        time.Time

	totalSuccesses atomic.Int64
	totalFailures  atomic.Int64
	totalRejected  atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
// Non-positive thresholds fall back to the defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = defaults.OpenTimeout
	}
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// State returns the current state of the circuit breaker.
// An open circuit whose timeout has elapsed reports half-open.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.openedAt) > cb.config.OpenTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Allow checks if a request should be allowed through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	from := cb.state
	allowed := true

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) > cb.config.OpenTimeout {
			cb.state = StateHalfOpen
			cb.consecSuccesses = 0
		} else {
			allowed = false
		}
	case StateClosed, StateHalfOpen:
	default:
		allowed = false
	}
	to := cb.state
	cb.mu.Unlock()

	if !allowed {
		cb.totalRejected.Add(1)
	}
	cb.notify(from, to)
	return allowed
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.totalSuccesses.Add(1)

	cb.mu.Lock()
	from := cb.state
	cb.consecFailures = 0
	cb.consecSuccesses++
	if cb.state == StateHalfOpen && cb.consecSuccesses >= cb.config.SuccessThreshold {
		cb.state = StateClosed
		cb.consecSuccesses = 0
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure() {
	cb.totalFailures.Add(1)

	cb.mu.Lock()
	from := cb.state
	cb.consecSuccesses = 0
	cb.consecFailures++

	switch cb.state {
	case StateClosed:
		if cb.consecFailures >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
	case StateHalfOpen:
		// any failure while probing trips the circuit again
		cb.state = StateOpen
		cb.openedAt = time.Now()
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// Stats returns the current statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	state := cb.State()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:           state,
		TotalSuccesses:  cb.totalSuccesses.Load(),
		TotalFailures:   cb.totalFailures.Load(),
		TotalRejected:   cb.totalRejected.Load(),
		ConsecFailures:  cb.consecFailures,
		ConsecSuccesses: cb.consecSuccesses,
	}
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecFailures = 0
	cb.consecSuccesses = 0
	cb.mu.Unlock()

	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// Execute runs fn if the breaker allows it. isFailure decides which errors
// count against the circuit; nil counts every non-nil error.
func Execute[T any](cb *CircuitBreaker, fn func() (T, error), isFailure func(error) bool) (T, error) {
	var zero T

	if !cb.Allow() {
		return zero, ErrCircuitOpen
	}

	result, err := fn()
	if err != nil && (isFailure == nil || isFailure(err)) {
		cb.RecordFailure()
		return result, err
	}

	cb.RecordSuccess()
	return result, err
}
