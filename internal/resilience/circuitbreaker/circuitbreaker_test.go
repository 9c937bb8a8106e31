package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("broker unavailable")

func testConfig(timeout time.Duration) Config {
	return Config{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          timeout,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}
}

func fail() error { return errUnavailable }

func TestCircuitBreaker_PassesThrough(t *testing.T) {
	cb := New(testConfig(time.Minute))
	assert.Equal(t, "test", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	calls := 0
	require.NoError(t, cb.Do(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, cb.Do(fail), errUnavailable)
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_TripsAndRejects(t *testing.T) {
	cb := New(testConfig(time.Minute))
	_ = cb.Do(fail)
	_ = cb.Do(fail)
	require.True(t, cb.IsOpen())

	called := false
	err := cb.Do(func() error { called = true; return nil })
	assert.False(t, called)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "test", rejected.Name)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, rejected.Retryable())
	assert.Contains(t, err.Error(), "circuit breaker test")
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(testConfig(20 * time.Millisecond))
	_ = cb.Do(fail)
	_ = cb.Do(fail)
	require.True(t, cb.IsOpen())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	require.NoError(t, cb.Do(func() error { return nil }))
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_MinRequests(t *testing.T) {
	cfg := testConfig(time.Minute)
	cfg.MinRequests = 5
	cb := New(cfg)

	for i := 0; i < 4; i++ {
		_ = cb.Do(fail)
	}
	assert.False(t, cb.IsOpen(), "below MinRequests the breaker stays closed")

	_ = cb.Do(fail)
	assert.True(t, cb.IsOpen())
}

func TestCircuitBreaker_CanceledIsNotFailure(t *testing.T) {
	cb := New(testConfig(time.Minute))
	for i := 0; i < 5; i++ {
		err := cb.Do(func() error { return fmt.Errorf("publish: %w", context.Canceled) })
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.False(t, cb.IsOpen())
}

func TestConfigs(t *testing.T) {
	tests := []struct {
		cfg  Config
		name string
	}{
		{BrokerConfig(), "amqp-publish"},
		{CacheConfig(), "prepare-cache"},
		{DBConfig(), "database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.cfg.Name)
			assert.Positive(t, tt.cfg.MaxRequests)
			assert.Positive(t, tt.cfg.Timeout)
			assert.Positive(t, tt.cfg.MinRequests)
			assert.Greater(t, tt.cfg.FailureThreshold, 0.0)
			assert.LessOrEqual(t, tt.cfg.FailureThreshold, 1.0)
		})
	}
}
