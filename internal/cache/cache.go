package cache

import (
	"context"
	"time"
)

// BytesCache is the minimal cache surface services depend on.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
