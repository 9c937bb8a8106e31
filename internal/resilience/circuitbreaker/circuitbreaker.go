// Package circuitbreaker guards the database, the message broker and the
// prepare cache with github.com/sony/gobreaker.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config describes when a breaker trips and how it recovers.
type Config struct {
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts.
	Interval time.Duration

	// Timeout is spent open before probing again.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests calls have been counted.
	FailureThreshold float64
	MinRequests      uint32
}

// BrokerConfig is used for route message publishes.
func BrokerConfig() Config {
	return Config{
		Name:             "amqp-publish",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CacheConfig is used for the prepare cache store. The cache is optional,
// so it trips early and recovers quickly.
func CacheConfig() Config {
	return Config{
		Name:             "prepare-cache",
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 0.5,
		MinRequests:      5,
	}
}

// CircuitBreaker is a named gobreaker breaker whose rejections are
// retryable errors.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New returns a closed breaker for cfg.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		// Cancellation is the caller giving up, not the dependency failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings), name: cfg.Name}
}

// Do runs fn through the breaker. While open, or while half-open and
// saturated, fn is not called and a *RejectedError is returned.
func (cb *CircuitBreaker) Do(fn func() error) error {
	_, err := cb.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &RejectedError{Name: cb.name, err: err}
	}
	return err
}

// RejectedError is returned when the breaker refuses a call.
type RejectedError struct {
	Name string
	err  error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("circuit breaker %s: %v", e.Name, e.err)
}

func (e *RejectedError) Unwrap() error { return e.err }

// Retryable is true: the dependency may recover before the next attempt.
func (e *RejectedError) Retryable() bool { return true }

func (cb *CircuitBreaker) State() gobreaker.State { return cb.breaker.State() }

func (cb *CircuitBreaker) Name() string { return cb.name }

// IsOpen reports whether calls are currently rejected outright.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
