package prepare

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"notification-prep/internal/domain/entity"
	"notification-prep/internal/observability/logging"
	"notification-prep/internal/observability/metrics"
)

// Cache kinds. They double as the last segment of the cache key.
const (
	KindNotification   = "notification"
	KindDrafts         = "drafts"
	KindBrand          = "brand"
	KindConfigurations = "configurations"
)

// Cache is the shared store behind request caching. Load is called on a miss;
// a nil value returned by load is not stored.
type Cache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) (value []byte, hit bool, err error)
}

// FlagSource provides the cache variation for a tenant.
type FlagSource interface {
	CacheVariation(ctx context.Context, tenantID string) (entity.CacheVariation, error)
}

// CacheKey returns the key of kind for a notification.
func CacheKey(tenantID, notificationID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", tenantID, notificationID, kind)
}

// requestCache reads through Cache for one request with a fixed policy.
type requestCache struct {
	cache  Cache
	policy entity.CachePolicy
}

func (c requestCache) ttl(kind string) time.Duration {
	switch kind {
	case KindNotification:
		return c.policy.Notification
	case KindDrafts:
		return c.policy.Drafts
	case KindBrand:
		return c.policy.Brand
	case KindConfigurations:
		return c.policy.Configurations
	}
	return 0
}

// cached returns the value of kind under key, loading it on a miss. Cache
// failures fall through to load.
func cached[T any](ctx context.Context, c requestCache, kind, key string, load func(context.Context) (T, error)) (T, error) {
	ttl := c.ttl(kind)
	if c.cache == nil || ttl == 0 {
		metrics.RecordCacheLookup(kind, "bypass")
		return load(ctx)
	}

	var loaded T
	var fromLoad bool
	raw, hit, err := c.cache.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		loaded, fromLoad = v, true
		return marshalCached(v)
	})
	if err != nil {
		if fromLoad {
			// the store failed after a successful load
			metrics.RecordCacheLookup(kind, "error")
			return loaded, nil
		}
		var zero T
		return zero, err
	}
	if fromLoad {
		metrics.RecordCacheLookup(kind, "miss")
		return loaded, nil
	}

	var v T
	if raw == nil {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "discarding undecodable cache entry",
			slog.String("key", key),
			slog.Any("error", err))
		metrics.RecordCacheLookup(kind, "error")
		return load(ctx)
	}
	if hit {
		metrics.RecordCacheLookup(kind, "hit")
	} else {
		metrics.RecordCacheLookup(kind, "shared")
	}
	return v, nil
}

// marshalCached encodes v, mapping nil pointers and empty maps to a nil value
// so absence is never cached.
func marshalCached(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch string(raw) {
	case "null", "{}", "[]":
		return nil, nil
	}
	return raw, nil
}
