package cache

import (
	"context"
	"time"
)

// LayeredCache keeps a bounded in-process copy in front of Redis.
type LayeredCache struct {
	mem    *TTLCache
	remote BytesCache
	// l1TTL caps how long a promoted remote entry lives in memory.
	l1TTL time.Duration
}

func NewLayeredCache(remote BytesCache, memSize int, l1TTL time.Duration) *LayeredCache {
	if l1TTL <= 0 {
		l1TTL = time.Minute
	}
	return &LayeredCache{mem: NewTTLCache(WithMaxSize(memSize)), remote: remote, l1TTL: l1TTL}
}

func (l *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, _ := l.mem.GetBytes(ctx, key); ok {
		return b, true, nil
	}
	b, ok, err := l.remote.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = l.mem.SetBytes(ctx, key, b, l.l1TTL)
	return b, true, nil
}

// SetBytes writes through to the remote layer first.
func (l *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := l.remote.SetBytes(ctx, key, value, ttl); err != nil {
		return err
	}
	memTTL := l.l1TTL
	if ttl > 0 && ttl < memTTL {
		memTTL = ttl
	}
	return l.mem.SetBytes(ctx, key, value, memTTL)
}
