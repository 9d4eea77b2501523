package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	redisv9 "github.com/redis/go-redis/v9"

	"caffmed-api/internal/decision"
)

// RedisVerdictCache shares verdicts between replicas. Keys are namespaced so a
// model or threshold change never serves stale verdicts.
type RedisVerdictCache struct {
	client    *redisv9.Client
	namespace string
	ttl       time.Duration
}

func NewRedisVerdictCache(client *redisv9.Client, namespace string, ttl time.Duration) *RedisVerdictCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisVerdictCache{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

func (c *RedisVerdictCache) Get(ctx context.Context, digest string) (decision.Verdict, bool, error) {
	raw, err := c.client.Get(ctx, c.key(digest)).Bytes()
	if err == redisv9.Nil {
		return decision.Verdict{}, false, nil
	}
	if err != nil {
		return decision.Verdict{}, false, fmt.Errorf("redis get verdict failed: %w", err)
	}

	var v decision.Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return decision.Verdict{}, false, fmt.Errorf("unmarshal cached verdict failed: %w", err)
	}
	return v, true, nil
}

func (c *RedisVerdictCache) Set(ctx context.Context, digest string, v decision.Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal verdict failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(digest), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set verdict failed: %w", err)
	}
	return nil
}

func (c *RedisVerdictCache) key(digest string) string {
	return fmt.Sprintf("caffmed:verdict:%s:%s", c.namespace, digest)
}

// MemoryVerdictCache is a bounded, expiring in-process cache.
type MemoryVerdictCache struct {
	lru *expirable.LRU[string, decision.Verdict]
}

func NewMemoryVerdictCache(size int, ttl time.Duration) *MemoryVerdictCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryVerdictCache{
		lru: expirable.NewLRU[string, decision.Verdict](size, nil, ttl),
	}
}

func (c *MemoryVerdictCache) Get(_ context.Context, digest string) (decision.Verdict, bool, error) {
	v, ok := c.lru.Get(digest)
	return v, ok, nil
}

func (c *MemoryVerdictCache) Set(_ context.Context, digest string, v decision.Verdict) error {
	c.lru.Add(digest, v)
	return nil
}

func (c *MemoryVerdictCache) Len() int {
	return c.lru.Len()
}
