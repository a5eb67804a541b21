package cache

import (
	"context"
	"time"
)

// BytesCache stores raw completion payloads with a TTL.
// A miss is reported as ok=false with a nil error.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var (
	_ BytesCache = (*TTLCache)(nil)
	_ BytesCache = (*RedisCache)(nil)
	_ BytesCache = (*LayeredCache)(nil)
)
