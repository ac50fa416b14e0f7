// Package resilience shields the interaction pipeline from misbehaving
// speech and language backends.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops sending traffic to a backend after repeated failures and probes it
// again once a cooldown has passed. [FallbackGroup] chains several backends
// of the same kind behind per-backend breakers, so an unhealthy primary is
// skipped in favour of the next configured one. The Recognizer, Generator
// and Synthesizer wrappers in this package adapt a group to the respective
// provider interface.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// refuses traffic.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen admits a bounded number of probe calls. Enough successes
	// close the breaker; a single failure re-opens it.
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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values fall back to
// defaults in [NewCircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// MaxFailures is how many consecutive failures trip the breaker while
	// closed. Default: 5.
	MaxFailures int

	// ResetTimeout is the cooldown before an open breaker starts probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the number of probe calls admitted while half-open
	// and is also the success count required to close. Default: 3.
	HalfOpenMax int

	// Logger receives state-transition events. Defaults to slog.Default().
	Logger *slog.Logger
}

// CircuitBreaker tracks the recent health of a single backend and gates
// calls to it.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	logger       *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
	probeOK     int
}

// NewCircuitBreaker creates a closed breaker from cfg, filling in defaults
// for unset fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		logger:       cfg.Logger,
		state:        StateClosed,
	}
}

// Execute runs fn if the breaker admits the call, otherwise it returns
// [ErrCircuitOpen] without invoking fn. The outcome of fn feeds back into
// the breaker's state.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if !cb.admitLocked() {
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	probing := cb.state == StateHalfOpen
	if probing {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailureLocked(probing)
	} else {
		cb.onSuccessLocked(probing)
	}
	return err
}

// admitLocked decides whether a call may proceed, performing the
// open-to-half-open transition when the cooldown has elapsed.
func (cb *CircuitBreaker) admitLocked() bool {
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeOK = 0
		cb.logger.Info("circuit breaker probing backend", "name", cb.name)
		return true
	case StateHalfOpen:
		return cb.probes < cb.halfOpenMax
	default:
		return true
	}
}

func (cb *CircuitBreaker) onFailureLocked(probing bool) {
	cb.lastFailure = time.Now()

	if probing {
		// One failed probe is enough evidence that the backend is still down.
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		cb.logger.Warn("circuit breaker re-opened", "name", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.logger.Warn("circuit breaker opened",
			"name", cb.name,
			"consecutive_failures", cb.failures)
	}
}

func (cb *CircuitBreaker) onSuccessLocked(probing bool) {
	if probing {
		cb.probeOK++
		if cb.probeOK >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.probes = 0
			cb.probeOK = 0
			cb.logger.Info("circuit breaker closed", "name", cb.name)
		}
		return
	}
	cb.failures = 0
}

// State reports the breaker's current mode. An open breaker whose cooldown
// has elapsed reports [StateHalfOpen]; the stored state only changes on the
// next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeOK = 0
	cb.logger.Info("circuit breaker reset", "name", cb.name)
}
