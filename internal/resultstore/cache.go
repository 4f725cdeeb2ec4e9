package resultstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amd-treatment-sim/internal/domain"
)

// CacheClient wraps Redis with run-summary caching. A run is keyed by the
// tuple that fully determines its output (protocol checksum, patient count,
// duration, seed), so identical requests can be answered without rerunning
// the simulation. Cache unavailability is never fatal.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client and verifies connectivity.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// RunKey builds the deterministic cache key for a simulation request.
func RunKey(protocolChecksum string, patients int, durationYears float64, seed int64) string {
	payload := fmt.Sprintf("%s|%d|%f|%d", protocolChecksum, patients, durationYears, seed)
	sum := sha256.Sum256([]byte(payload))
	return "amdsim:run:" + hex.EncodeToString(sum[:])
}

type cachedRunSummary struct {
	Summary   *domain.RunSummary `json:"summary"`
	CachedAt  time.Time          `json:"cached_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// GetRunSummary retrieves a cached run summary. The second return value is
// false on a cache miss.
func (c *CacheClient) GetRunSummary(ctx context.Context, key string) (*domain.RunSummary, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get run cache: %w", err)
	}

	var cached cachedRunSummary
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove the corrupted entry and treat as a miss.
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Summary, true, nil
}

// SetRunSummary caches a run summary under the given key.
func (c *CacheClient) SetRunSummary(ctx context.Context, key string, summary *domain.RunSummary) error {
	now := time.Now()
	cached := cachedRunSummary{
		Summary:   summary,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal run cache entry: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, c.defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to set run cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}
