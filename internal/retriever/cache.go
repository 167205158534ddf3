package retriever

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides 2-tier caching for per-backend auxiliary data (subreddit
// descriptions, resolved handles): L1 in-memory + optional L2 Redis.
// Retrieval results are never cached — every retrieve call is fresh.
var auxCache *tieredCache

// Cache metrics — atomic counters for thread-safe access.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// tieredCache implements L1 (memory) + L2 (Redis) caching.
type tieredCache struct {
	l1              sync.Map      // key → *cacheEntry
	rdb             *redis.Client // nil if Redis unavailable
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// InitCache sets up the 2-tier cache. Call after Init().
// redisURL can be empty to disable L2.
func InitCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	c := &tieredCache{ttl: ttl, maxEntries: maxEntries, cleanupInterval: cleanupInterval}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	auxCache = c
	slog.Info("cache: initialized", slog.Duration("ttl", ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", maxEntries))

	go c.cleanupLoop()
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("rt:%x", hash[:12]) // 24-char hex prefix
}

// CacheGet tries L1, then L2. On L2 hit, populates L1.
func CacheGet(ctx context.Context, key string) (string, bool) {
	if auxCache == nil {
		cacheMisses.Add(1)
		return "", false
	}

	// L1 check
	if val, ok := auxCache.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			cacheHits.Add(1)
			return entry.value, true
		}
		auxCache.l1.Delete(key) // expired
	}

	// L2 check
	if auxCache.rdb != nil {
		value, err := auxCache.rdb.Get(ctx, key).Result()
		if err == nil {
			cacheHits.Add(1)
			auxCache.l1.Store(key, &cacheEntry{
				value:     value,
				expiresAt: time.Now().Add(auxCache.ttl),
			})
			return value, true
		}
	}

	cacheMisses.Add(1)
	return "", false
}

// CacheSet stores value in both L1 and L2.
func CacheSet(ctx context.Context, key, value string) {
	if auxCache == nil {
		return
	}

	auxCache.evictIfNeeded()

	auxCache.l1.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(auxCache.ttl),
	})

	if auxCache.rdb != nil {
		if err := auxCache.rdb.Set(ctx, key, value, auxCache.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

// evictIfNeeded removes entries when L1 exceeds maxEntries.
// Removes expired entries first, then oldest entries if still over limit.
func (c *tieredCache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})

	if count < c.maxEntries {
		return
	}

	// Phase 1: remove expired
	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	if count < c.maxEntries {
		return
	}

	// Phase 2: remove oldest entries until under limit.
	// Earlier expiry = older entry (expiry = createdAt + ttl).
	var oldest struct {
		key any
		at  time.Time
	}
	for count >= c.maxEntries {
		oldest.key = nil
		oldest.at = time.Now().Add(time.Hour)
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok {
				if entry.expiresAt.Before(oldest.at) {
					oldest.key = key
					oldest.at = entry.expiresAt
				}
			}
			return true
		})
		if oldest.key == nil {
			break
		}
		c.l1.Delete(oldest.key)
		count--
	}
}

// cleanupLoop periodically removes expired L1 entries.
func (c *tieredCache) cleanupLoop() {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
				c.l1.Delete(key)
			}
			return true
		})
	}
}
