package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"
)

// ResultCache stores classified inference results by content key.
type ResultCache interface {
	Get(ctx context.Context, key string) (*InferenceResult, bool, error)
	Set(ctx context.Context, key string, result *InferenceResult, ttl time.Duration) error
}

// MemoryResultCache keeps results in process memory.
type MemoryResultCache struct {
	items *cache.Cache
}

func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	return &MemoryResultCache{items: cache.New(ttl, 2*ttl)}
}

func (c *MemoryResultCache) Get(_ context.Context, key string) (*InferenceResult, bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	result := *v.(*InferenceResult)
	return &result, true, nil
}

func (c *MemoryResultCache) Set(_ context.Context, key string, result *InferenceResult, ttl time.Duration) error {
	stored := *result
	c.items.Set(key, &stored, ttl)
	return nil
}

// RedisResultCache shares results between instances.
type RedisResultCache struct {
	client redis.Cmdable
	prefix string
}

func NewRedisResultCache(client redis.Cmdable) *RedisResultCache {
	return &RedisResultCache{client: client, prefix: "inference:result:"}
}

func (c *RedisResultCache) Get(ctx context.Context, key string) (*InferenceResult, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cached result: %w", err)
	}

	var result InferenceResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("decoding cached result: %w", err)
	}
	return &result, true, nil
}

func (c *RedisResultCache) Set(ctx context.Context, key string, result *InferenceResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}

// resultKey hashes the image together with the overrides that shape the
// result. Fields are NUL separated so adjacent values cannot collide.
func resultKey(req *InferenceRequest) string {
	h := blake3.New()
	_, _ = h.Write(req.Image)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.TrimSpace(req.Title)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.ToLower(strings.Join(splitIngredients(req.Ingredients), "\x1f"))))
	return hex.EncodeToString(h.Sum(nil))
}

// contentKey hashes the image alone; uploads are stored under it.
func contentKey(image []byte) string {
	sum := blake3.Sum256(image)
	return hex.EncodeToString(sum[:])
}
