package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryItem struct {
	key      string
	data     []byte
	expireAt time.Time
}

// MemoryCache implements Service in process with TTL expiry and LRU eviction.
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	lru        *list.List // front = most recently used
	maxSize    int
	defaultTTL time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// MemoryOption tunes a MemoryCache before its sweeper starts.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize bounds the entry count. Values below one are raised to one.
func WithMemoryMaxSize(n int) MemoryOption { return func(mc *MemoryCache) { mc.maxSize = max(n, 1) } }

// WithMemoryDefaultTTL applies when Set is called with a non-positive expiration.
func WithMemoryDefaultTTL(ttl time.Duration) MemoryOption {
	return func(mc *MemoryCache) { mc.defaultTTL = ttl }
}

// WithMemoryCleanup sets the sweep period. Zero disables the sweeper goroutine.
func WithMemoryCleanup(every time.Duration) MemoryOption {
	return func(mc *MemoryCache) { mc.sweepEvery = every }
}

func WithMemoryClock(now func() time.Time) MemoryOption { return func(mc *MemoryCache) { mc.now = now } }

// NewMemoryCache creates an in-memory cache holding 1000 entries for an hour by default.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	mc := &MemoryCache{
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		maxSize:    1000,
		defaultTTL: time.Hour,
		sweepEvery: 5 * time.Minute,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(mc)
	}
	if mc.sweepEvery > 0 {
		go mc.cleanupExpired(mc.sweepEvery)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.setLocked(key, data, expiration)
	return nil
}

func (mc *MemoryCache) setLocked(key string, data []byte, expiration time.Duration) {
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	expireAt := mc.now().Add(expiration)

	if el, ok := mc.items[key]; ok {
		it := el.Value.(*memoryItem)
		it.data, it.expireAt = data, expireAt
		mc.lru.MoveToFront(el)
		return
	}

	for mc.lru.Len() >= mc.maxSize {
		mc.removeElement(mc.lru.Back())
	}
	mc.items[key] = mc.lru.PushFront(&memoryItem{key: key, data: data, expireAt: expireAt})
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.live(key)
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.lru.MoveToFront(el)
	data := el.Value.(*memoryItem).data
	mc.mu.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, ok := mc.live(key); ok {
		return "", nil
	}
	token := uuid.NewString()
	mc.setLocked(key, []byte(token), ttl)
	return token, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key, token string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.live(key)
	if !ok || string(el.Value.(*memoryItem).data) != token {
		return ErrLockNotHeld
	}
	mc.removeElement(el)
	return nil
}

// Len returns the number of stored entries, expired ones included until swept.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lru.Len()
}

// live returns the element for key, dropping it if expired. Caller holds mu.
func (mc *MemoryCache) live(key string) (*list.Element, bool) {
	el, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	if mc.now().After(el.Value.(*memoryItem).expireAt) {
		mc.removeElement(el)
		return nil, false
	}
	return el, true
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	mc.lru.Remove(el)
	delete(mc.items, el.Value.(*memoryItem).key)
}

func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			mc.mu.Lock()
			now := mc.now()
			for el := mc.lru.Back(); el != nil; {
				prev := el.Prev()
				if now.After(el.Value.(*memoryItem).expireAt) {
					mc.removeElement(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}
