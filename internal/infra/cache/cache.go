package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"notification-prep/internal/observability/logging"
	"notification-prep/internal/resilience/circuitbreaker"
)

// Cache is a read-through cache over a Store.
//
// Concurrent misses for one key share a single load. Store failures never
// fail a lookup: reads fall through to the loader and writes are dropped.
// After repeated failures the breaker opens and the store is skipped
// entirely until it recovers.
type Cache struct {
	store   Store
	group   singleflight.Group
	breaker *circuitbreaker.CircuitBreaker
}

// New returns a Cache over store guarded by circuitbreaker.CacheConfig.
func New(store Store) *Cache {
	return NewWithBreaker(store, circuitbreaker.New(circuitbreaker.CacheConfig()))
}

// NewWithBreaker returns a Cache over store guarded by breaker.
func NewWithBreaker(store Store, breaker *circuitbreaker.CircuitBreaker) *Cache {
	return &Cache{store: store, breaker: breaker}
}

// GetOrLoad returns the value under key. On a miss, load runs once for all
// concurrent callers and a non-nil result is stored for ttl. hit reports
// whether the value came from the store.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if v, ok := c.get(ctx, key); ok {
		return v, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		raw, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw != nil {
			c.set(ctx, key, raw, ttl)
		}
		return raw, nil
	})
	if err != nil {
		return nil, false, err
	}
	raw, _ := v.([]byte)
	return raw, false, nil
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	var found bool
	err := c.breaker.Do(func() error {
		v, ok, err := c.store.Get(ctx, key)
		value, found = v, ok
		return err
	})
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.Any("error", err))
		return nil, false
	}
	return value, found
}

func (c *Cache) set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	err := c.breaker.Do(func() error {
		return c.store.Set(ctx, key, value, ttl)
	})
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// BreakerOpen reports whether the store is currently being skipped.
func (c *Cache) BreakerOpen() bool {
	return c.breaker.IsOpen()
}
