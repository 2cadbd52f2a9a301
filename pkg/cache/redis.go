package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetIfNewer(ctx context.Context, key, versionKey string, version int64, value any, ttl time.Duration) (bool, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// Redis is a Cache backed by the shared redis client. All keys live under
// namespace so prefix invalidation never touches sessions or locks.
type Redis struct {
	store     redisStore
	namespace string
}

func NewRedis(store redisStore, namespace string) (*Redis, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	namespace = strings.TrimSuffix(strings.TrimSpace(namespace), ":")
	if namespace == "" {
		return nil, fmt.Errorf("cache namespace required")
	}
	return &Redis{store: store, namespace: namespace}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.store.Get(ctx, r.key(key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.store.Set(ctx, r.key(key), value, ttl)
}

// SetIfNewer keeps the version beside the value under <key>:version so plain
// Get reads stay unchanged.
func (r *Redis) SetIfNewer(ctx context.Context, key string, version int64, value []byte, ttl time.Duration) (bool, error) {
	full := r.key(key)
	return r.store.SetIfNewer(ctx, full, full+":version", version, value, ttl)
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) error {
	_, err := r.store.DeleteByPrefix(ctx, r.key(prefix))
	return err
}

func (r *Redis) key(key string) string {
	return r.namespace + ":" + key
}
