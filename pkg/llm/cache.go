package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/onco-review-server/internal/domain"
)

// Insight caches. The cache is an injected capability (domain.InsightCache)
// rather than a module-level map so tests can substitute a fresh instance.
// Two backends: an in-process LRU with TTL for single-node deployments and
// a Redis-backed cache for shared deployments.

// MemoryInsightCache is the in-process LRU backend.
type MemoryInsightCache struct {
	entries *lru.LRU[string, *domain.MasterAIResponse]
}

// NewMemoryInsightCache creates an LRU cache with the given capacity and
// per-entry TTL.
func NewMemoryInsightCache(maxEntries int, ttl time.Duration) *MemoryInsightCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &MemoryInsightCache{
		entries: lru.NewLRU[string, *domain.MasterAIResponse](maxEntries, nil, ttl),
	}
}

// Get retrieves a memoized response.
func (c *MemoryInsightCache) Get(_ context.Context, patientID string) (*domain.MasterAIResponse, bool) {
	return c.entries.Get(patientID)
}

// Set stores a response.
func (c *MemoryInsightCache) Set(_ context.Context, patientID string, response *domain.MasterAIResponse) {
	c.entries.Add(patientID, response)
}

// Invalidate drops a memoized response.
func (c *MemoryInsightCache) Invalidate(_ context.Context, patientID string) {
	c.entries.Remove(patientID)
}

// RedisInsightCache is the shared Redis backend.
type RedisInsightCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
}

// cachedInsight wraps a stored response with its expiry metadata.
type cachedInsight struct {
	Data      *domain.MasterAIResponse `json:"data"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// NewRedisInsightCache creates a Redis-backed cache from configuration and
// verifies the connection.
func NewRedisInsightCache(cfg *domain.CacheConfig, logger *logrus.Logger) (*RedisInsightCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &RedisInsightCache{
		client:     client,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger,
	}, nil
}

// Get retrieves a memoized response. Corrupted or expired entries are
// removed and treated as misses; Redis errors degrade to a miss.
func (c *RedisInsightCache) Get(ctx context.Context, patientID string) (*domain.MasterAIResponse, bool) {
	key := insightKey(patientID)

	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("patient_id", patientID).Warn("Insight cache read failed")
		return nil, false
	}

	var cached cachedInsight
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		c.client.Del(ctx, key)
		return nil, false
	}
	if time.Now().After(cached.ExpiresAt) {
		c.client.Del(ctx, key)
		return nil, false
	}
	return cached.Data, true
}

// Set stores a response with the default TTL.
func (c *RedisInsightCache) Set(ctx context.Context, patientID string, response *domain.MasterAIResponse) {
	ttl := c.defaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cached := cachedInsight{
		Data:      response,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		c.logger.WithError(err).WithField("patient_id", patientID).Warn("Insight cache encode failed")
		return
	}
	if err := c.client.Set(ctx, insightKey(patientID), payload, ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("patient_id", patientID).Warn("Insight cache write failed")
	}
}

// Invalidate drops a memoized response.
func (c *RedisInsightCache) Invalidate(ctx context.Context, patientID string) {
	if err := c.client.Del(ctx, insightKey(patientID)).Err(); err != nil {
		c.logger.WithError(err).WithField("patient_id", patientID).Warn("Insight cache invalidate failed")
	}
}

// Close closes the Redis connection.
func (c *RedisInsightCache) Close() error {
	return c.client.Close()
}

func insightKey(patientID string) string {
	return "insight:patient:" + patientID
}
