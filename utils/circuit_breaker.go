package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker refuses calls. Callers treat
// it the same as an unreachable upstream.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards calls to the payment processor. When the failure
// ratio trips it stops issuing requests for a cooldown period, so a
// processor outage degrades the dashboard to "unavailable" instead of
// stacking up blocked request handlers.
type CircuitBreaker struct {
	name         string
	maxRequests  uint32
	interval     time.Duration
	cooldown     time.Duration
	failureRatio float64

	mutex  sync.Mutex
	state  BreakerState
	counts breakerCounts
	expiry time.Time
}

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "closed"
	}
}

type breakerCounts struct {
	requests  uint32
	successes uint32
	failures  uint32
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxRequests:  5,
		interval:     60 * time.Second,
		cooldown:     30 * time.Second,
		failureRatio: 0.5,
		state:        BreakerClosed,
	}
}

// Execute runs req through the breaker, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cb.beforeRequest(); err != nil {
		return nil, err
	}

	result, err := req()
	cb.afterRequest(err == nil)
	return result, err
}

// State reports the current breaker state for health display.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.advance(time.Now())
	return cb.state
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.advance(time.Now())

	switch cb.state {
	case BreakerOpen:
		return ErrBreakerOpen
	case BreakerHalfOpen:
		if cb.counts.requests >= cb.maxRequests {
			return ErrBreakerOpen
		}
	}

	cb.counts.requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.advance(time.Now())

	if success {
		cb.counts.successes++
		if cb.state == BreakerHalfOpen {
			cb.state = BreakerClosed
			cb.resetCounts(time.Now())
		}
		return
	}

	cb.counts.failures++
	if cb.state == BreakerHalfOpen || cb.tripped() {
		cb.state = BreakerOpen
		cb.expiry = time.Now().Add(cb.cooldown)
	}
}

func (cb *CircuitBreaker) tripped() bool {
	// at least a handful of observations before any trip decision
	if cb.counts.requests < cb.maxRequests {
		return false
	}
	return float64(cb.counts.failures)/float64(cb.counts.requests) >= cb.failureRatio
}

// advance moves the breaker through time-driven transitions. Caller holds
// the mutex.
func (cb *CircuitBreaker) advance(now time.Time) {
	switch cb.state {
	case BreakerClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.resetCounts(now)
		}
	case BreakerOpen:
		if cb.expiry.Before(now) {
			cb.state = BreakerHalfOpen
			cb.counts = breakerCounts{}
			cb.expiry = time.Time{}
		}
	}
}

func (cb *CircuitBreaker) resetCounts(now time.Time) {
	cb.counts = breakerCounts{}
	cb.expiry = now.Add(cb.interval)
}
