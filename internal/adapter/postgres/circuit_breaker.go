package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/shunguan/voteable/internal/adapter/metrics"
	"github.com/shunguan/voteable/internal/domain"
)

const breakerComponent = "postgres"

// CircuitBreaker rejects store calls while PostgreSQL keeps failing.
// Domain outcomes (not found, exists) and caller cancellation are not failures.
type CircuitBreaker struct {
	cb circuitbreaker.CircuitBreaker[any]
}

// NewCircuitBreaker opens on a 60% failure rate over at least 5 calls within
// 10s, and probes again after 30s. m may be nil.
func NewCircuitBreaker(m *metrics.StoreMetrics) *CircuitBreaker {
	return newCircuitBreaker(5, 30*time.Second, m)
}

func newCircuitBreaker(minExecutions uint, delay time.Duration, m *metrics.StoreMetrics) *CircuitBreaker {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, minExecutions, 10*time.Second).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", breakerComponent,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.CircuitBreakerStateChanges.WithLabelValues(breakerComponent, e.NewState.String()).Inc()
				m.CircuitBreakerState.WithLabelValues(breakerComponent).Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	if m != nil {
		m.CircuitBreakerState.WithLabelValues(breakerComponent).Set(stateToFloat(circuitbreaker.ClosedState))
	}
	return &CircuitBreaker{cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// run executes fn if the breaker admits it and records the outcome. A nil breaker runs fn directly.
func (b *CircuitBreaker) run(fn func() error) error {
	if b == nil {
		return fn()
	}
	if !b.cb.TryAcquirePermit() {
		return fmt.Errorf("%w: postgres circuit breaker open: %w", domain.ErrStoreUnavailable, circuitbreaker.ErrOpen)
	}

	err := fn()
	if isBreakerFailure(err) {
		b.cb.RecordError(err)
	} else {
		b.cb.RecordSuccess()
	}
	return err
}

func isBreakerFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrVoteeNotFound), errors.Is(err, domain.ErrVoteeExists):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

func (b *CircuitBreaker) State() circuitbreaker.State {
	return b.cb.State()
}
