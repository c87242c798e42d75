package gallery

import (
	"context"

	"github.com/google/uuid"

	"github.com/cartavio/imagesync-backend/pkg/redis"
)

// cacheDeleter is the slice of the redis client the notifier consumes.
type cacheDeleter interface {
	Del(ctx context.Context, keys ...string) error
	ProductCacheKey(productID string) string
}

// RedisNotifier drops the cached product view so the next read rebuilds it
// with the new gallery state.
type RedisNotifier struct {
	cache cacheDeleter
}

// NewRedisNotifier builds a notifier over the shared redis client.
func NewRedisNotifier(cache *redis.Client) *RedisNotifier {
	return &RedisNotifier{cache: cache}
}

// ProductChanged invalidates the product cache entry.
func (n *RedisNotifier) ProductChanged(ctx context.Context, productID uuid.UUID) error {
	return n.cache.Del(ctx, n.cache.ProductCacheKey(productID.String()))
}
