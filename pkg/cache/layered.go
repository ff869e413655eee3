package cache

import (
	"context"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: Redis).
// Locks always go to L2 so they hold across replicas.
type LayeredCache struct {
	mem       *MemoryCache
	remote    Service
	memoryTTL time.Duration
}

// LayeredOption tunes the in-process tier of a LayeredCache.
type LayeredOption func(*layeredSettings)

type layeredSettings struct {
	size int
	ttl  time.Duration
}

func WithLayeredMemorySize(n int) LayeredOption { return func(s *layeredSettings) { s.size = n } }

// WithLayeredMemoryTTL caps how long L1 keeps an entry whatever the L2 expiration.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(s *layeredSettings) { s.ttl = ttl }
}

// NewLayeredCache creates a layered cache over any remote Service.
func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	s := layeredSettings{size: 1000, ttl: 5 * time.Minute}
	for _, opt := range opts {
		opt(&s)
	}
	return &LayeredCache{
		mem:       NewMemoryCache(WithMemoryMaxSize(s.size), WithMemoryDefaultTTL(s.ttl)),
		remote:    remote,
		memoryTTL: s.ttl,
	}
}

func (lc *LayeredCache) l1TTL(expiration time.Duration) time.Duration {
	if expiration <= 0 || expiration > lc.memoryTTL {
		return lc.memoryTTL
	}
	return expiration
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	// Write-through: remote first, then memory
	if err := lc.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return lc.mem.Set(ctx, key, value, lc.l1TTL(expiration))
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}

	if err := lc.remote.Get(ctx, key, dest); err != nil {
		return err
	}

	_ = lc.mem.Set(ctx, key, dest, lc.memoryTTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key, token string) error {
	return lc.remote.Unlock(ctx, key, token)
}

// Close stops the memory layer.
func (lc *LayeredCache) Close() error {
	return lc.mem.Close()
}
