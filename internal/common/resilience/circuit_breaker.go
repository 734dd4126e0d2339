package resilience

import (
	"context"
	"sync/atomic"
	"time"

	commonerrors "github.com/AlibekovAA/panel-auth/internal/common/errors"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
	"github.com/AlibekovAA/panel-auth/internal/observability/metrics"
)

const (
	stateClosed = 0
	stateOpen   = 1
)

type CircuitBreaker struct {
	failures    atomic.Int32
	lastFailure atomic.Value
	threshold   int32
	timeout     time.Duration
	resetAfter  time.Duration
	name        string
	isFailure   func(error) bool
	log         *logger.Logger
}

type CircuitBreakerConfig struct {
	Threshold  int32
	Timeout    time.Duration
	ResetAfter time.Duration
	Name       string
	// IsFailure decides whether an error counts toward opening the circuit.
	// Nil counts every error.
	IsFailure func(error) bool
	Logger    *logger.Logger
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		threshold:  config.Threshold,
		timeout:    config.Timeout,
		resetAfter: config.ResetAfter,
		name:       config.Name,
		isFailure:  config.IsFailure,
		log:        config.Logger,
	}
	cb.lastFailure.Store(time.Time{})
	return cb
}

func (cb *CircuitBreaker) IsOpen() bool {
	if cb.failures.Load() < cb.threshold {
		cb.setState(stateClosed)
		return false
	}

	lastFailure := cb.lastFailure.Load().(time.Time)
	if lastFailure.IsZero() {
		cb.setState(stateClosed)
		return false
	}

	if time.Since(lastFailure) > cb.resetAfter {
		cb.reset()
		cb.setState(stateClosed)
		return false
	}

	cb.setState(stateOpen)
	return true
}

func (cb *CircuitBreaker) setState(state float64) {
	if cb.name != "" {
		metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(state)
	}
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.failures.Add(1)
	cb.lastFailure.Store(time.Now())
	if cb.name != "" {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.name).Inc()
	}
	if cb.log != nil {
		cb.log.Warnf("circuit breaker [%s]: failure recorded: %v", cb.name, err)
	}
}

func (cb *CircuitBreaker) reset() {
	cb.failures.Store(0)
	cb.lastFailure.Store(time.Time{})
}

// Call runs fn under the breaker timeout. It returns ErrCircuitOpen without
// calling fn while the circuit is open.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	return cb.CallWithFallback(ctx, fn, nil)
}

func (cb *CircuitBreaker) CallWithFallback(ctx context.Context, fn func(context.Context) error, fallback func() error) error {
	if cb.IsOpen() {
		if cb.log != nil {
			if fallback != nil {
				cb.log.Warnf("circuit breaker [%s]: circuit is open, using fallback", cb.name)
			} else {
				cb.log.Warnf("circuit breaker [%s]: circuit is open, rejecting request", cb.name)
			}
		}
		if fallback != nil {
			return fallback()
		}
		return commonerrors.ErrCircuitOpen
	}

	callCtx := ctx
	if cb.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.timeout)
		defer cancel()
	}

	err := fn(callCtx)
	if err != nil {
		// A caller that gave up says nothing about the dependency.
		if ctx.Err() == nil && (cb.isFailure == nil || cb.isFailure(err)) {
			cb.recordFailure(err)
		}
		if fallback != nil {
			if cb.log != nil {
				cb.log.Infof("circuit breaker [%s]: operation failed, using fallback", cb.name)
			}
			return fallback()
		}
		return err
	}

	cb.reset()
	return nil
}
