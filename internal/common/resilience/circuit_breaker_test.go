package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/AlibekovAA/panel-auth/internal/common/errors"
	"github.com/AlibekovAA/panel-auth/internal/observability/metrics"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  2,
		Timeout:    time.Second,
		ResetAfter: time.Hour,
	})

	fail := func(context.Context) error { return errBoom }

	assert.ErrorIs(t, cb.Call(context.Background(), fail), errBoom)
	assert.ErrorIs(t, cb.Call(context.Background(), fail), errBoom)

	called := false
	err := cb.Call(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, commonerrors.ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_IsFailureFiltersErrors(t *testing.T) {
	errNotFound := errors.New("not found")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  1,
		Timeout:    time.Second,
		ResetAfter: time.Hour,
		IsFailure:  func(err error) bool { return !errors.Is(err, errNotFound) },
	})

	for i := 0; i < 3; i++ {
		err := cb.Call(context.Background(), func(context.Context) error { return errNotFound })
		assert.ErrorIs(t, err, errNotFound)
	}
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_ResetsAfterWindow(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  1,
		Timeout:    time.Second,
		ResetAfter: 10 * time.Millisecond,
	})

	_ = cb.Call(context.Background(), func(context.Context) error { return errBoom })
	require.True(t, cb.IsOpen())

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_AppliesTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  5,
		Timeout:    10 * time.Millisecond,
		ResetAfter: time.Hour,
	})

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, Timeout: time.Second, ResetAfter: time.Hour})

	err := cb.CallWithFallback(context.Background(),
		func(context.Context) error { return errBoom },
		func() error { return nil },
	)
	assert.NoError(t, err)
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  1,
		Timeout:    time.Second,
		ResetAfter: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, cb.IsOpen())

	expired, cancelExpired := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancelExpired()
	<-expired.Done()
	err = cb.Call(expired, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_OwnTimeoutCounts(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  1,
		Timeout:    10 * time.Millisecond,
		ResetAfter: time.Hour,
	})

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_StateGauge(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  1,
		Timeout:    time.Second,
		ResetAfter: 10 * time.Millisecond,
		Name:       "state_gauge_test",
	})
	gauge := metrics.CircuitBreakerState.WithLabelValues("state_gauge_test")

	assert.False(t, cb.IsOpen())
	assert.Equal(t, float64(stateClosed), testutil.ToFloat64(gauge))

	_ = cb.Call(context.Background(), func(context.Context) error { return errBoom })
	require.True(t, cb.IsOpen())
	assert.Equal(t, float64(stateOpen), testutil.ToFloat64(gauge))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, cb.IsOpen())
	assert.Equal(t, float64(stateClosed), testutil.ToFloat64(gauge))
}
