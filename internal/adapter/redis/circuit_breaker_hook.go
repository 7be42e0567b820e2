package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shunguan/voteable/internal/adapter/metrics"
	"github.com/shunguan/voteable/internal/domain"
)

const breakerComponent = "redis"

// CircuitBreakerHook fails Redis commands fast while Redis is unreachable.
// Votes then fail with a store error instead of piling up behind dial timeouts.
// Server error replies (NOSCRIPT, WRONGTYPE) and redis.Nil do not count as failures.
type CircuitBreakerHook struct {
	cb circuitbreaker.CircuitBreaker[any]
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips on a 60% failure rate over at least 5 calls
// within 10s, and probes again after 30s. m may be nil.
func NewCircuitBreakerHook(m *metrics.StoreMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(5, 30*time.Second, m)
}

func newCircuitBreakerHook(minExecutions uint, delay time.Duration, m *metrics.StoreMetrics) *CircuitBreakerHook {
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
	return &CircuitBreakerHook{cb: cb}
}

func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, goredis.Nil) || errors.Is(err, context.Canceled) {
		return true
	}
	var replyErr goredis.Error
	return errors.As(err, &replyErr)
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

// guard runs fn if the breaker admits it. Rejections wrap ErrStoreUnavailable;
// command errors pass through untouched so callers can still match redis.Nil
// and server replies.
func (h *CircuitBreakerHook) guard(op string, fn func() error) error {
	if !h.cb.TryAcquirePermit() {
		return fmt.Errorf("%w: redis circuit breaker open, %s rejected: %w", domain.ErrStoreUnavailable, op, circuitbreaker.ErrOpen)
	}

	err := fn()
	if isBreakerSuccess(err) {
		h.cb.RecordSuccess()
	} else {
		h.cb.RecordError(err)
	}
	return err
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var conn net.Conn
		err := h.guard("dial", func() error {
			var err error
			conn, err = next(ctx, network, addr)
			return err
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		return h.guard(cmd.Name(), func() error {
			return next(ctx, cmd)
		})
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		return h.guard("pipeline", func() error {
			return next(ctx, cmds)
		})
	}
}

// State returns the current breaker state.
func (h *CircuitBreakerHook) State() circuitbreaker.State {
	return h.cb.State()
}

// Metrics returns the execution counts the breaker currently tracks.
func (h *CircuitBreakerHook) Metrics() circuitbreaker.Metrics {
	return h.cb.Metrics()
}
