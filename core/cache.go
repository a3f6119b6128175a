package core

import (
	"context"
	"time"
)

// Cache is a byte cache shared by read-heavy services.
// Get reports found=false on a miss; errors are infrastructure failures only.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}
