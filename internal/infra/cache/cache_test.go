package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-prep/internal/infra/cache"
	"notification-prep/internal/resilience/circuitbreaker"
	"notification-prep/internal/usecase/prepare"
)

var _ prepare.Cache = (*cache.Cache)(nil)

/*──────────────────────────────── stubs ────────────────────────────────*/

type failingStore struct {
	gets atomic.Int32
	sets atomic.Int32
}

func (s *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	s.gets.Add(1)
	return nil, false, errors.New("connection refused")
}

func (s *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	s.sets.Add(1)
	return errors.New("connection refused")
}

func loader(calls *atomic.Int32, value []byte) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return value, nil
	}
}

/*──────────────────────────────── tests ────────────────────────────────*/

func TestCache_MissThenHit(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	c := cache.New(store)
	var calls atomic.Int32

	v, hit, err := c.GetOrLoad(ctx, "t1/n1/notification", time.Minute, loader(&calls, []byte(`{"id":"n1"}`)))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, `{"id":"n1"}`, string(v))

	v, hit, err = c.GetOrLoad(ctx, "t1/n1/notification", time.Minute, loader(&calls, []byte(`{"id":"other"}`)))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, `{"id":"n1"}`, string(v))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_NilIsNotStored(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	c := cache.New(store)
	var calls atomic.Int32

	for i := 0; i < 2; i++ {
		v, hit, err := c.GetOrLoad(ctx, "t1/missing/brand", time.Minute, loader(&calls, nil))
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Nil(t, v)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, store.Len())
}

func TestCache_LoadErrorPropagates(t *testing.T) {
	c := cache.New(cache.NewMemoryStore())
	boom := errors.New("db down")

	_, _, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore())
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`"v"`), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrLoad(ctx, "t1/n1/configurations", time.Minute, load)
			if err == nil {
				results[i] = string(v)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, `"v"`, r)
	}
}

func TestCache_StoreFailureFallsThrough(t *testing.T) {
	store := &failingStore{}
	c := cache.New(store)
	var calls atomic.Int32

	v, hit, err := c.GetOrLoad(context.Background(), "k", time.Minute, loader(&calls, []byte("fresh")))

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", string(v))
	assert.Equal(t, int32(1), store.gets.Load())
	assert.Equal(t, int32(1), store.sets.Load())
}

func TestCache_BreakerSkipsFailingStore(t *testing.T) {
	store := &failingStore{}
	cfg := circuitbreaker.CacheConfig()
	cfg.Name = "test-cache"
	cfg.MinRequests = 2
	cfg.Timeout = time.Hour
	c := cache.NewWithBreaker(store, circuitbreaker.New(cfg))
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		v, _, err := c.GetOrLoad(context.Background(), "k", time.Minute, loader(&calls, []byte("fresh")))
		require.NoError(t, err)
		assert.Equal(t, "fresh", string(v))
	}

	assert.True(t, c.BreakerOpen())
	assert.Equal(t, int32(5), calls.Load())
	assert.Less(t, store.gets.Load()+store.sets.Load(), int32(10))
}
