package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	keyNamespace = "sf"
	scanBatch    = 200
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
const compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

// setIfNewer writes KEYS[1]=ARGV[2] and KEYS[2]=ARGV[1] unless KEYS[2] already
// holds a version >= ARGV[1]. ARGV[3] is the ttl in milliseconds, 0 for none.
const setIfNewer = `local cur = tonumber(redis.call("GET", KEYS[2]))
if cur and cur >= tonumber(ARGV[1]) then return 0 end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
  redis.call("SET", KEYS[2], ARGV[1], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
  redis.call("SET", KEYS[2], ARGV[1])
end
return 1`

var errNotInitialized = errors.New("redis client not initialized")

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	SetNX(context.Context, string, any, time.Duration) *redis.BoolCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
	Del(context.Context, ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Client is the storefront's handle on Redis: idempotency records, rate
// limit windows, sessions, cache entries and cron locks all go through it.
type Client struct {
	store cmdable
	raw   *redis.Client
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is what the idempotency middleware needs.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New dials Redis and pings it once before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redis_db", opts.DB), "redis connection established")
	}
	return &Client{store: raw, raw: raw}, nil
}

// buildOptions starts from the URL when one is set and fills whatever the URL
// left unset from the discrete settings.
func buildOptions(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}

	fillZero(&opts.DB, cfg.DB)
	fillZero(&opts.PoolSize, cfg.PoolSize)
	fillZero(&opts.MinIdleConns, cfg.MinIdleConns)
	fillZero(&opts.DialTimeout, cfg.DialTimeout)
	fillZero(&opts.ReadTimeout, cfg.ReadTimeout)
	fillZero(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func fillZero[T comparable](dst *T, v T) {
	var zero T
	if *dst == zero {
		*dst = v
	}
}

func (c *Client) conn() (cmdable, error) {
	if c == nil || c.store == nil {
		return nil, errNotInitialized
	}
	return c.store, nil
}

// Set stores value at key. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}
	return conn.Set(ctx, key, value, ttl).Err()
}

// Get returns the value at key, or redis.Nil when it does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	conn, err := c.conn()
	if err != nil {
		return "", err
	}
	return conn.Get(ctx, key).Result()
}

// SetNX writes value only when key is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	conn, err := c.conn()
	if err != nil {
		return false, err
	}
	return conn.SetNX(ctx, key, value, ttl).Result()
}

// SetIfNewer writes value at key and version at versionKey in one step, unless
// versionKey already holds version or a later one. Reports whether it wrote.
func (c *Client) SetIfNewer(ctx context.Context, key, versionKey string, version int64, value any, ttl time.Duration) (bool, error) {
	conn, err := c.conn()
	if err != nil {
		return false, err
	}
	n, err := conn.Eval(ctx, setIfNewer, []string{key, versionKey}, version, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("versioned set %s: %w", key, err)
	}
	return n > 0, nil
}

// IncrWithTTL bumps a fixed-window counter. The window starts on the first
// increment, which is the only one that sets the expiry.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	conn, err := c.conn()
	if err != nil {
		return 0, err
	}
	count, err := conn.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 && ttl > 0 {
		if err := conn.Expire(ctx, key, ttl).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

// DeleteIfValue deletes key atomically, but only while it still holds
// expected. Reports whether a key was removed.
func (c *Client) DeleteIfValue(ctx context.Context, key, expected string) (bool, error) {
	conn, err := c.conn()
	if err != nil {
		return false, err
	}
	n, err := conn.Eval(ctx, compareAndDelete, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("compare and delete %s: %w", key, err)
	}
	return n > 0, nil
}

// DeleteByPrefix removes every key under prefix. It walks the keyspace with
// SCAN in batches instead of KEYS.
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	conn, err := c.conn()
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(prefix) == "" {
		return 0, errors.New("prefix is required")
	}

	var deleted int64
	iter := cursorPages(conn, prefix+"*")
	for {
		keys, done, err := iter(ctx)
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := conn.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("delete %s: %w", prefix, err)
			}
			deleted += n
		}
		if done {
			return deleted, nil
		}
	}
}

// cursorPages returns a function yielding one SCAN page per call.
func cursorPages(conn cmdable, match string) func(context.Context) ([]string, bool, error) {
	var cursor uint64
	return func(ctx context.Context) ([]string, bool, error) {
		keys, next, err := conn.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, false, err
		}
		cursor = next
		return keys, next == 0, nil
	}
}

// Del removes keys. Missing keys are ignored.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}
	return conn.Del(ctx, keys...).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.conn()
	if err != nil {
		return err
	}
	return conn.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// IdempotencyKey -> sf:idempotency:<scope>:<id>
func (c *Client) IdempotencyKey(scope, id string) string {
	return Key("idempotency", scope, id)
}

// RateLimitKey -> sf:rate_limit:<scope>
func (c *Client) RateLimitKey(scope string) string {
	return Key("rate_limit", scope)
}

// AccessSessionKey -> sf:session:access:<jti>
func (c *Client) AccessSessionKey(accessID string) string {
	return Key("session", "access", accessID)
}

// LockKey -> sf:lock:<name>
func (c *Client) LockKey(name string) string {
	return Key("lock", name)
}

// Key joins parts under the storefront namespace, skipping blank parts.
func Key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
