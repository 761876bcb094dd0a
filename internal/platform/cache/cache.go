// Package cache wraps Redis for the two ambient roles it plays in the
// memory core: a TTL'd cache in front of the importance heuristic (§4.1.1)
// and an INCR/DEL counter backing the orphan-accumulation consolidation
// trigger (§4.8.1). Postgres remains the source of truth in both cases; a
// cache miss or a Redis outage only costs recomputation, never correctness.
package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type Cache interface {
	// GetImportance returns a cached importance score for a content hash key,
	// and whether it was found.
	GetImportance(ctx context.Context, key string) (float64, bool, error)
	SetImportance(ctx context.Context, key string, score float64, ttl time.Duration) error

	// IncrOrphanCount increments the per-user orphan counter and returns the
	// new value; the consolidator resets it back to zero once it runs.
	IncrOrphanCount(ctx context.Context, userID string) (int64, error)
	ResetOrphanCount(ctx context.Context, userID string) error

	Close() error
}

type redisCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisCache(log *logger.Logger) (Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DialTimeout: 5 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisCache{log: log.With("service", "RedisCache"), rdb: rdb}, nil
}

func (c *redisCache) GetImportance(ctx context.Context, key string) (float64, bool, error) {
	val, err := c.rdb.Get(ctx, importanceKey(key)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

func (c *redisCache) SetImportance(ctx context.Context, key string, score float64, ttl time.Duration) error {
	return c.rdb.Set(ctx, importanceKey(key), strconv.FormatFloat(score, 'f', -1, 64), ttl).Err()
}

func (c *redisCache) IncrOrphanCount(ctx context.Context, userID string) (int64, error) {
	return c.rdb.Incr(ctx, orphanKey(userID)).Result()
}

func (c *redisCache) ResetOrphanCount(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, orphanKey(userID)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func importanceKey(key string) string { return "mem:importance:" + key }
func orphanKey(userID string) string  { return "mem:orphan_count:" + userID }

// inProcessCache is the sync.Map-backed fallback used when REDIS_ADDR is
// unset, so a single-process deployment never needs a Redis instance just to
// exercise the importance cache or orphan counter.
type inProcessCache struct {
	mu      sync.Mutex
	scores  sync.Map // key -> scoreEntry
	orphans sync.Map // userID -> *int64
}

type scoreEntry struct {
	score   float64
	expires time.Time
}

func NewInProcessCache() Cache {
	return &inProcessCache{}
}

func (c *inProcessCache) GetImportance(_ context.Context, key string) (float64, bool, error) {
	v, ok := c.scores.Load(key)
	if !ok {
		return 0, false, nil
	}
	entry := v.(scoreEntry)
	if time.Now().After(entry.expires) {
		c.scores.Delete(key)
		return 0, false, nil
	}
	return entry.score, true, nil
}

func (c *inProcessCache) SetImportance(_ context.Context, key string, score float64, ttl time.Duration) error {
	c.scores.Store(key, scoreEntry{score: score, expires: time.Now().Add(ttl)})
	return nil
}

func (c *inProcessCache) IncrOrphanCount(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.orphans.Load(userID)
	var count int64
	if v != nil {
		count = *(v.(*int64))
	}
	count++
	c.orphans.Store(userID, &count)
	return count, nil
}

func (c *inProcessCache) ResetOrphanCount(_ context.Context, userID string) error {
	c.orphans.Delete(userID)
	return nil
}

func (c *inProcessCache) Close() error { return nil }
