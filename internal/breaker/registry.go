package breaker

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// errRecordedFailure feeds failed dispatch outcomes into gobreaker's
// counters; it never escapes this package.
var errRecordedFailure = errors.New("provider dispatch failed")

// Config controls every breaker in the registry.
type Config struct {
	// Consecutive failures before a breaker opens.
	FailureThreshold uint32
	// How long a breaker stays open before a trial request is allowed.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         5 * time.Minute,
	}
}

// Registry holds one circuit breaker per provider. The breaker map is
// built at construction and never mutated, so lookups need no locking;
// gobreaker serialises its own state transitions.
type Registry struct {
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewRegistry(providers []string, cfg Config, logger zerolog.Logger) *Registry {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, name := range providers {
		settings := gobreaker.Settings{
			Name:        name,
			MaxRequests: 1, // single trial request while half-open
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().
					Str("provider", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		}
		breakers[name] = gobreaker.NewCircuitBreaker(settings)
	}
	return &Registry{breakers: breakers}
}

// IsAvailable reports whether the provider may be dispatched to.
// Reading the state performs gobreaker's time-based transition, so an
// open breaker whose cooldown has elapsed becomes available again here
// with no explicit reset. Unknown providers are unavailable.
func (r *Registry) IsAvailable(provider string) bool {
	cb, ok := r.breakers[provider]
	if !ok {
		return false
	}
	return cb.State() != gobreaker.StateOpen
}

// RecordSuccess clears the provider's consecutive-failure count and, if
// the breaker was half-open, closes it.
func (r *Registry) RecordSuccess(provider string) {
	cb, ok := r.breakers[provider]
	if !ok {
		return
	}
	_, _ = cb.Execute(func() (interface{}, error) {
		return nil, nil
	})
}

// RecordFailure counts one failed dispatch against the provider,
// opening the breaker once the threshold is reached.
func (r *Registry) RecordFailure(provider string) {
	cb, ok := r.breakers[provider]
	if !ok {
		return
	}
	_, _ = cb.Execute(func() (interface{}, error) {
		return nil, errRecordedFailure
	})
}
