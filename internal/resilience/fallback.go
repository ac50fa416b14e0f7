package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no entry in a [FallbackGroup] produced a
// successful call.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup]. The CircuitBreaker settings
// apply to every entry; each entry still gets its own breaker instance.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// Logger receives skip and failover events. Defaults to slog.Default().
	Logger *slog.Logger
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered list of interchangeable backends, each
// guarded by a circuit breaker. Calls go to the first entry whose breaker
// admits them and which does not fail; later entries are only consulted when
// earlier ones are skipped or errored.
//
// Entry registration is not synchronized. Register all fallbacks before the
// group is shared across goroutines; Execute itself is safe for concurrent
// use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
	logger  *slog.Logger
}

// NewFallbackGroup creates a group with primary as its sole entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	fg := &FallbackGroup[T]{cfg: cfg, logger: cfg.Logger}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend. Entries are tried in registration order.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	if cbCfg.Logger == nil {
		cbCfg.Logger = fg.logger
	}
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute runs fn against entries in order until one call succeeds. Entries
// with an open breaker are skipped without being called. When every entry
// fails, the returned error wraps [ErrAllFailed] together with the last
// observed error.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for functions that produce a
// value. It is a package-level function because methods cannot introduce
// their own type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(entry.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			fg.logger.Debug("skipping provider with open circuit", "provider", entry.name)
		} else {
			fg.logger.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
