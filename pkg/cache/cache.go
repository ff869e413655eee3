package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrLockNotHeld is returned by Unlock when the lock expired or belongs to another owner.
	ErrLockNotHeld = errors.New("cache: lock not held")
)

// Service defines cache operations interface.
// Values are stored JSON-encoded; Get decodes into dest.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// TryLock acquires key for ttl and returns an owner token, or "" when it is taken.
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Unlock releases key only if token still owns it.
	Unlock(ctx context.Context, key, token string) error
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case *string:
		return []byte(*v), nil
	}
	return json.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	if strPtr, ok := dest.(*string); ok {
		*strPtr = string(data)
		return nil
	}
	return json.Unmarshal(data, dest)
}

// GenerateKey joins prefix and id with a colon. An empty prefix leaves id as is.
func GenerateKey(prefix string, id string) string {
	if prefix == "" {
		return id
	}
	return prefix + ":" + id
}

// GenerateKeyWithParams formats every param with %v and joins them after prefix.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, prefix)
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ":")
}
