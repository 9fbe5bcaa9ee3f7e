package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/errors"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call because
// the circuit is open.
var ErrCircuitOpen = errors.Unavailable("circuit breaker is open", nil)

// ErrTooManyRequests is returned when the half-open state has already
// admitted its allotted probe request.
var ErrTooManyRequests = errors.Unavailable("circuit breaker half-open request limit reached", nil)

// CircuitBreaker implements the circuit breaker pattern over the
// context-and-error Executor shape used throughout this package (retry,
// messaging.ResilientBroker, transport publishers).
//
// State machine mirrors pkg/servicemesh/circuitbreaker: closed -> open on
// FailureThreshold consecutive failures, open -> half-open after Timeout,
// half-open -> closed on SuccessThreshold consecutive successes, any
// half-open failure reopens the circuit.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int64
	successes     int64
	lastFailure   time.Time
	halfOpenCount int64
}

// NewCircuitBreaker creates a new circuit breaker with the given config,
// applying sensible defaults for unset fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn Executor) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.after(err == nil)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.cfg.Timeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenCount = 1
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenCount >= 1 {
			return ErrTooManyRequests
		}
		cb.halfOpenCount++
		return nil
	}
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if success {
			cb.failures = 0
			return
		}
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		if success {
			cb.successes++
			cb.halfOpenCount = 0
			if cb.successes >= cb.cfg.SuccessThreshold {
				cb.setState(StateClosed)
			}
			return
		}
		cb.setState(StateOpen)
	}
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenCount = 0
	if state == StateOpen {
		cb.lastFailure = time.Now()
	}
	if cb.cfg.OnStateChange != nil {
		go cb.cfg.OnStateChange(cb.cfg.Name, from, state)
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
