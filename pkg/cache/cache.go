// Package cache is the read-through response cache injected into services.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Cache stores opaque values by key. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetIfNewer stores value unless key already holds a value rendered from
	// version or a later one. It reports whether value was written.
	SetIfNewer(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error)
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Fetch returns the cached JSON value for key or calls load and stores its
// result. Cache failures are logged and fall through to load.
func Fetch[T any](ctx context.Context, c Cache, logg *logger.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	if raw, ok, err := c.Get(ctx, key); err != nil {
		warn(ctx, logg, "cache.get_failed", key, err)
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		warn(ctx, logg, "cache.decode_failed", key, err)
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		warn(ctx, logg, "cache.encode_failed", key, err)
		return value, nil
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		warn(ctx, logg, "cache.set_failed", key, err)
	}
	return value, nil
}

// FetchVersioned is Fetch for values rendered from a versioned row. A load
// that lost a race with a newer Store is returned but never cached.
func FetchVersioned[T any](ctx context.Context, c Cache, logg *logger.Logger, key string, ttl time.Duration, load func(context.Context) (T, int64, error)) (T, error) {
	if c == nil {
		value, _, err := load(ctx)
		return value, err
	}
	if raw, ok, err := c.Get(ctx, key); err != nil {
		warn(ctx, logg, "cache.get_failed", key, err)
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		warn(ctx, logg, "cache.decode_failed", key, err)
	}

	value, version, err := load(ctx)
	if err != nil {
		return value, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		warn(ctx, logg, "cache.encode_failed", key, err)
		return value, nil
	}
	if _, err := c.SetIfNewer(ctx, key, version, raw, ttl); err != nil {
		warn(ctx, logg, "cache.set_failed", key, err)
	}
	return value, nil
}

// Store writes a freshly committed value through to the cache. When the write
// fails the key is dropped so readers fall back to the database.
func Store(ctx context.Context, c Cache, logg *logger.Logger, key string, ttl time.Duration, version int64, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err == nil {
		_, err = c.SetIfNewer(ctx, key, version, raw, ttl)
	}
	if err != nil {
		warn(ctx, logg, "cache.store_failed", key, err)
		Invalidate(ctx, c, logg, key)
	}
}

// Invalidate drops every key under the given prefixes, logging failures.
func Invalidate(ctx context.Context, c Cache, logg *logger.Logger, prefixes ...string) {
	if c == nil {
		return
	}
	for _, prefix := range prefixes {
		if err := c.InvalidatePrefix(ctx, prefix); err != nil {
			warn(ctx, logg, "cache.invalidate_failed", prefix, err)
		}
	}
}

func warn(ctx context.Context, logg *logger.Logger, event, key string, err error) {
	if logg == nil {
		return
	}
	ctx = logg.WithFields(ctx, map[string]any{"event": event, "cache_key": key, "error": err.Error()})
	logg.Warn(ctx, "cache unavailable")
}
