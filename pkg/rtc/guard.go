package rtc

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Guard defaults.
const (
	// DefaultAttempts is the number of bus attempts per operation.
	DefaultAttempts = 10

	// DefaultRetryInterval is the delay between bus attempts.
	DefaultRetryInterval = time.Millisecond

	// DefaultBreakerFailures is the number of consecutive faults that opens
	// the breaker.
	DefaultBreakerFailures = 5

	// DefaultBreakerOpenFor is how long the breaker stays open before a probe.
	DefaultBreakerOpenFor = 30 * time.Second
)

// GuardConfig configures retry and fault isolation for bus access.
type GuardConfig struct {
	Attempts        int
	RetryInterval   time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration

	// Logger receives retry and breaker transitions (optional).
	Logger *slog.Logger
}

// DefaultGuardConfig returns the default guard configuration.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Attempts:        DefaultAttempts,
		RetryInterval:   DefaultRetryInterval,
		BreakerFailures: DefaultBreakerFailures,
		BreakerOpenFor:  DefaultBreakerOpenFor,
	}
}

// Guard runs bus operations with a bounded retry budget behind a circuit
// breaker. It is safe for concurrent use.
type Guard struct {
	attempts int
	interval time.Duration
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewGuard creates a guard. Zero fields in cfg take their defaults.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = DefaultBreakerOpenFor
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &Guard{
		attempts: cfg.Attempts,
		interval: cfg.RetryInterval,
		logger:   cfg.Logger,
	}

	failures := uint32(cfg.BreakerFailures)
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rtc",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("rtc breaker state change", "from", from.String(), "to", to.String())
		},
	})

	return g
}

// Do runs fn until it succeeds or the attempt budget is spent.
// The returned error wraps ErrHardwareFault on failure.
func (g *Guard) Do(op string, fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.retry(op, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: breaker %v", ErrHardwareFault, op, err)
	}
	return err
}

// State returns the breaker state name.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func (g *Guard) retry(op string, fn func() error) error {
	attempt := 0
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(g.interval), uint64(g.attempts-1))

	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err != nil && attempt < g.attempts {
			g.logger.Debug("rtc retrying", "op", op, "attempt", attempt, "error", err)
		}
		return err
	}, bo)
	if err != nil {
		return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrHardwareFault, op, attempt, err)
	}
	return nil
}
