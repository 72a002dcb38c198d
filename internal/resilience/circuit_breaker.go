// Package resilience provides the circuit breaker guarding external source
// lookups. A source that keeps failing is short-circuited for a cooldown
// period instead of hammering a dead endpoint.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the current mode of a circuit breaker.
type State int32

const (
	// StateClosed - requests flow normally.
	StateClosed State = iota
	// StateOpen - requests are rejected immediately.
	StateOpen
	// StateHalfOpen - a single trial request probes for recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker settings.
type Config struct {
	// Name identifies this breaker in logs and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before allowing a
	// half-open trial.
	Cooldown time.Duration

	// OnStateChange is called whenever the state changes.
	OnStateChange func(name string, from, to State)
}

// DefaultConfig returns breaker settings suited to REST source lookups.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker tracks consecutive failures of one external source.
type CircuitBreaker struct {
	cfg Config

	mu           sync.Mutex
	state        State
	failures     int
	openedAt     time.Time
	trialPending bool
}

// New creates a circuit breaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.observe(time.Now())
}

// Do runs fn if the breaker allows it, recording the result.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		cb.record(err)
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.observe(time.Now()) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.trialPending {
			return ErrCircuitOpen
		}
		cb.trialPending = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.observe(now)
	cb.trialPending = false

	if err == nil {
		cb.failures = 0
		if state == StateHalfOpen {
			cb.transition(state, StateClosed)
		}
		return
	}

	cb.failures++
	if state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.openedAt = now
		cb.transition(state, StateOpen)
	}
}

// observe advances open → half-open after the cooldown. Callers hold cb.mu.
func (cb *CircuitBreaker) observe(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.cfg.Cooldown {
		cb.transition(StateOpen, StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(from, to State) {
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
