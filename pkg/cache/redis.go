package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only when the caller still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSettings struct {
	addr     string
	password string
	db       int
	pool     int
	minIdle  int
	wait     time.Duration
	prefix   string
}

// RedisOption tunes NewRedisClient and NewRedisCache. Each constructor reads
// only the settings it needs.
type RedisOption func(*redisSettings)

func WithRedisAddr(addr string) RedisOption { return func(s *redisSettings) { s.addr = addr } }

func WithRedisPassword(pw string) RedisOption { return func(s *redisSettings) { s.password = pw } }

func WithRedisDB(db int) RedisOption { return func(s *redisSettings) { s.db = db } }

// WithRedisPool sets the pool size, the idle floor and how long a caller waits for a free connection.
func WithRedisPool(size, minIdle int, wait time.Duration) RedisOption {
	return func(s *redisSettings) { s.pool, s.minIdle, s.wait = size, minIdle, wait }
}

// WithRedisPrefix namespaces every key written by a RedisCache.
func WithRedisPrefix(prefix string) RedisOption { return func(s *redisSettings) { s.prefix = prefix } }

func redisSettingsFrom(opts []RedisOption) redisSettings {
	s := redisSettings{addr: "localhost:6379", pool: 10, minIdle: 5, wait: 30 * time.Second, prefix: "signaldesk:cache"}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// RedisCache implements Service using Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisClient dials Redis and verifies the connection.
func NewRedisClient(opts ...RedisOption) (*redis.Client, error) {
	s := redisSettingsFrom(opts)
	client := redis.NewClient(&redis.Options{
		Addr:         s.addr,
		Password:     s.password,
		DB:           s.db,
		PoolSize:     s.pool,
		PoolTimeout:  s.wait,
		MinIdleConns: s.minIdle,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", s.addr, err)
	}
	return client, nil
}

// NewRedisCache wraps an existing client. The client is shared, Close does not close it.
func NewRedisCache(client *redis.Client, opts ...RedisOption) *RedisCache {
	return &RedisCache{client: client, prefix: redisSettingsFrom(opts).prefix}
}

// Client returns underlying redis client.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.wrapKey(key), data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return decode(data, dest)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Unlink(ctx, c.wrapKeys(keys...)...).Err()
}

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, c.wrapKey(key), token, ttl).Result()
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

func (c *RedisCache) Unlock(ctx context.Context, key, token string) error {
	n, err := unlockScript.Run(ctx, c.client, []string{c.wrapKey(key)}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (c *RedisCache) wrapKey(key string) string {
	return GenerateKey(c.prefix, key)
}

func (c *RedisCache) wrapKeys(keys ...string) []string {
	wrapped := make([]string, len(keys))
	for i, key := range keys {
		wrapped[i] = c.wrapKey(key)
	}
	return wrapped
}
