package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/resilience"
)

func fastConfig(retries int) resilience.Config {
	return resilience.Config{MaxRetries: retries, InitialBackoff: time.Millisecond}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(3), func() error {
		callCount++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(2), func() error {
		callCount++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2}
	assert.NotPanics(t, func() {
		_ = resilience.RetryWithBackoff(context.Background(), cfg, func() error {
			return errors.New("boom")
		})
	})
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	base := errors.New("row violates check constraint")
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastConfig(5), func() error {
		callCount++
		return resilience.Permanent(base)
	})

	assert.Equal(t, 1, callCount)
	assert.ErrorIs(t, err, base)
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 5, InitialBackoff: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGuard_UnwrapsPermanent(t *testing.T) {
	cb := resilience.NewCircuitBreaker("guard-permanent")
	base := errors.New("bad request")

	err := resilience.Guard(context.Background(), cb, fastConfig(2), func() error {
		return resilience.Permanent(base)
	})
	assert.Same(t, base, err)
}

func TestGuard_PermanentDoesNotTrip(t *testing.T) {
	cb := resilience.NewCircuitBreaker("guard-no-trip")
	for i := 0; i < 10; i++ {
		_ = resilience.Guard(context.Background(), cb, fastConfig(0), func() error {
			return resilience.Permanent(errors.New("not found"))
		})
	}

	err := resilience.Guard(context.Background(), cb, fastConfig(0), func() error { return nil })
	assert.NoError(t, err)
}

func TestGuard_OpenCircuit(t *testing.T) {
	cb := resilience.NewCircuitBreaker("guard-open")
	for i := 0; i < 5; i++ {
		_ = resilience.Guard(context.Background(), cb, fastConfig(0), func() error {
			return errors.New("connection refused")
		})
	}

	called := false
	err := resilience.Guard(context.Background(), cb, fastConfig(0), func() error {
		called = true
		return nil
	})

	var open *domain.ErrCircuitOpen
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "guard-open", open.Service)
	assert.False(t, called)
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	require.NoError(t, bh.Acquire(context.Background()))
	require.NoError(t, bh.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, bh.Acquire(ctx), "third acquire should time out")

	bh.Release()
	assert.NoError(t, bh.Acquire(context.Background()))
}

func TestBulkhead_ClampsToOne(t *testing.T) {
	bh := resilience.NewBulkhead(0)
	require.NoError(t, bh.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, bh.Acquire(ctx))
}
