package pdfexport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores rendered PDF bytes in Redis, keyed by document id and
// version. A document update changes updated_at and therefore the key, so
// stale renders simply age out.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key composes the cache key for a document version.
func Key(id uuid.UUID, updatedAt time.Time) string {
	return fmt.Sprintf("pdf:%s:%d", id, updatedAt.UnixNano())
}

// Get returns cached bytes, or nil when missing.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set stores bytes under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, data []byte) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
