package availability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"clinicslots/pkg/clock"
	"clinicslots/pkg/model"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Cache stores month availability per doctor. Entries are advisory: a miss
// or a backend error only costs a round trip to the slot store.
type Cache interface {
	Get(ctx context.Context, doctorID, month string) (model.AvailabilityIndex, bool, error)
	Set(ctx context.Context, doctorID, month string, index model.AvailabilityIndex) error
	Invalidate(ctx context.Context, doctorID, month string) error
	InvalidateDoctor(ctx context.Context, doctorID string) error
}

func cacheKey(doctorID, month string) string {
	return fmt.Sprintf("availability:%s:%s", doctorID, month)
}

type memoryEntry struct {
	index     model.AvailabilityIndex
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   clock.Clock
}

func NewMemoryCache(ttl time.Duration, clk clock.Clock) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

func (c *MemoryCache) Get(_ context.Context, doctorID, month string) (model.AvailabilityIndex, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(doctorID, month)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return copyIndex(entry.index), true, nil
}

func (c *MemoryCache) Set(_ context.Context, doctorID, month string, index model.AvailabilityIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(doctorID, month)] = memoryEntry{
		index:     copyIndex(index),
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, doctorID, month string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(doctorID, month))
	return nil
}

func (c *MemoryCache) InvalidateDoctor(_ context.Context, doctorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := cacheKey(doctorID, "")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func copyIndex(in model.AvailabilityIndex) model.AvailabilityIndex {
	out := make(model.AvailabilityIndex, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, doctorID, month string) (model.AvailabilityIndex, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(doctorID, month)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get availability: %w", err)
	}

	var index model.AvailabilityIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, false, fmt.Errorf("decode cached availability: %w", err)
	}
	return index, true, nil
}

func (c *RedisCache) Set(ctx context.Context, doctorID, month string, index model.AvailabilityIndex) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(doctorID, month), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set availability: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, doctorID, month string) error {
	if err := c.client.Del(ctx, cacheKey(doctorID, month)).Err(); err != nil {
		return fmt.Errorf("redis delete availability: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateDoctor(ctx context.Context, doctorID string) error {
	iter := c.client.Scan(ctx, 0, cacheKey(doctorID, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan availability: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete availability: %w", err)
	}
	return nil
}
