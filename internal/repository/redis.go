package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jack/url-shortener-platform/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	urlCachePrefix   = "url:"
	clickCountPrefix = "clicks:"

	// URLCacheTTL bounds staleness of cached mappings; both the read-through
	// path and the bus warmer write with this TTL.
	URLCacheTTL = 3600 * time.Second
)

type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(cfg *config.RedisConfig) (*RedisRepository, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisRepository{client: client}, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// GetLongURL returns the cached long URL for a short code, or "" on miss.
func (r *RedisRepository) GetLongURL(ctx context.Context, shortCode string) (string, error) {
	longURL, err := r.client.Get(ctx, urlCachePrefix+shortCode).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get url from cache: %w", err)
	}

	return longURL, nil
}

// SetLongURL caches a short_code -> long_url mapping with the standard TTL.
func (r *RedisRepository) SetLongURL(ctx context.Context, shortCode, longURL string) error {
	if err := r.client.SetEx(ctx, urlCachePrefix+shortCode, longURL, URLCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set url in cache: %w", err)
	}

	return nil
}

// IncrementClickCount bumps the pending click counter for a short code.
// Counters are flushed to Postgres by the click sync scheduler.
func (r *RedisRepository) IncrementClickCount(ctx context.Context, shortCode string) error {
	if err := r.client.Incr(ctx, clickCountPrefix+shortCode).Err(); err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}

	return nil
}

func (r *RedisRepository) IncrementClickCountBy(ctx context.Context, shortCode string, delta int64) error {
	if err := r.client.IncrBy(ctx, clickCountPrefix+shortCode, delta).Err(); err != nil {
		return fmt.Errorf("failed to increment click count by %d: %w", delta, err)
	}

	return nil
}

// GetAndResetClickCount atomically reads and clears a pending counter, so
// clicks are neither lost nor double-counted during a sync (Redis 6.2+).
func (r *RedisRepository) GetAndResetClickCount(ctx context.Context, shortCode string) (int64, error) {
	count, err := r.client.GetDel(ctx, clickCountPrefix+shortCode).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get and reset click count: %w", err)
	}

	return count, nil
}

func (r *RedisRepository) GetAllClickCountKeys(ctx context.Context) ([]string, error) {
	pattern := clickCountPrefix + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan click count keys: %w", err)
	}

	return keys, nil
}

func ExtractShortCodeFromKey(key string) string {
	return key[len(clickCountPrefix):]
}

func (r *RedisRepository) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
