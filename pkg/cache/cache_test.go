package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type view struct {
	ID    string `json:"id"`
	Total int64  `json:"total"`
}

func TestFetchLoadsOnceThenServesFromCache(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	calls := 0
	load := func(context.Context) (view, error) {
		calls++
		return view{ID: "c1", Total: 1200}, nil
	}

	first, err := Fetch(ctx, mem, logger.Nop(), "cart:c1", time.Minute, load)
	require.NoError(t, err)
	second, err := Fetch(ctx, mem, logger.Nop(), "cart:c1", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestFetchFallsThroughOnCacheFailure(t *testing.T) {
	ctx := context.Background()
	broken := &failingCache{err: errors.New("connection refused")}

	got, err := Fetch(ctx, broken, logger.Nop(), "k", time.Minute, func(context.Context) (view, error) {
		return view{ID: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.ID)

	Invalidate(ctx, broken, logger.Nop(), "products:")
}

func TestFetchDoesNotCacheLoadErrors(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	_, err := Fetch(ctx, mem, logger.Nop(), "k", time.Minute, func(context.Context) (view, error) {
		return view{}, errors.New("db down")
	})
	require.Error(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestFetchVersionedNeverOverwritesNewerStore(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	stale, err := FetchVersioned(ctx, mem, logger.Nop(), "cart:u", time.Minute, func(ctx context.Context) (view, int64, error) {
		// a writer commits version 2 while version 1 is being rendered
		Store(ctx, mem, logger.Nop(), "cart:u", time.Minute, 2, view{ID: "c1", Total: 900})
		return view{ID: "c1", Total: 100}, 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), stale.Total)

	got, err := FetchVersioned(ctx, mem, logger.Nop(), "cart:u", time.Minute, func(context.Context) (view, int64, error) {
		t.Fatal("expected a cache hit")
		return view{}, 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.Total)

	Store(ctx, mem, logger.Nop(), "cart:u", time.Minute, 1, view{ID: "c1", Total: 100})
	raw, ok, err := mem.Get(ctx, "cart:u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"c1","total":900}`, string(raw))
}

func TestStoreDropsKeyWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	broken := &failingCache{err: errors.New("connection refused")}
	Store(ctx, broken, logger.Nop(), "cart:u", time.Minute, 3, view{ID: "c1"})
	assert.Equal(t, 1, broken.invalidated)
}

func TestMemoryExpiryAndPrefixInvalidation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := NewMemory()
	mem.now = func() time.Time { return now }

	require.NoError(t, mem.Set(ctx, "products:list:a", []byte("1"), time.Minute))
	require.NoError(t, mem.Set(ctx, "products:detail:b", []byte("2"), 0))
	require.NoError(t, mem.Set(ctx, "cart:u", []byte("3"), 0))

	now = now.Add(2 * time.Minute)
	_, ok, _ := mem.Get(ctx, "products:list:a")
	assert.False(t, ok, "expired entry should miss")

	require.NoError(t, mem.InvalidatePrefix(ctx, "products:"))
	_, ok, _ = mem.Get(ctx, "products:detail:b")
	assert.False(t, ok)
	value, ok, _ := mem.Get(ctx, "cart:u")
	assert.True(t, ok)
	assert.Equal(t, []byte("3"), value)
}

func TestRedisCacheNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	store := &fakeRedisStore{data: map[string]string{}}
	c, err := NewRedis(store, "sf:cache:")
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "cart:u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "cart:u1", []byte(`{"id":"x"}`), time.Minute))
	assert.Contains(t, store.data, "sf:cache:cart:u1")

	_, err = c.SetIfNewer(ctx, "cart:u2", 2, []byte(`{"id":"y"}`), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "sf:cache:cart:u2:version", store.lastVersionKey)

	require.NoError(t, c.InvalidatePrefix(ctx, "cart:"))
	assert.Equal(t, "sf:cache:cart:", store.lastPrefix)

	_, err = NewRedis(store, " ")
	assert.Error(t, err)
}

func TestNoopNeverHits(t *testing.T) {
	var c Cache = Noop{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingCache struct {
	err         error
	invalidated int
}

func (f *failingCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }

func (f *failingCache) Set(context.Context, string, []byte, time.Duration) error { return f.err }

func (f *failingCache) SetIfNewer(context.Context, string, int64, []byte, time.Duration) (bool, error) {
	return false, f.err
}

func (f *failingCache) InvalidatePrefix(context.Context, string) error {
	f.invalidated++
	return f.err
}

type fakeRedisStore struct {
	data           map[string]string
	lastPrefix     string
	lastVersionKey string
}

func (f *fakeRedisStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedisStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return nil
}

func (f *fakeRedisStore) SetIfNewer(_ context.Context, key, versionKey string, version int64, value any, _ time.Duration) (bool, error) {
	f.lastVersionKey = versionKey
	f.data[key] = string(value.([]byte))
	return true, nil
}

func (f *fakeRedisStore) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	f.lastPrefix = prefix
	return 0, nil
}
