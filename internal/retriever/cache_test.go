package retriever

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCacheKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := CacheKey("reddit_sub", "golang")
		k2 := CacheKey("reddit_sub", "golang")
		if k1 != k2 {
			t.Errorf("CacheKey not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("different inputs differ", func(t *testing.T) {
		k1 := CacheKey("reddit_sub", "golang")
		k2 := CacheKey("reddit_sub", "rust")
		if k1 == k2 {
			t.Errorf("different inputs produced same key: %q", k1)
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		k := CacheKey("test")
		if k[:3] != "rt:" {
			t.Errorf("expected rt: prefix, got %q", k[:3])
		}
	})
}

func TestCacheGetSet(t *testing.T) {
	// Init minimal cache (no Redis)
	InitCache("", 1*time.Minute, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "round-trip")

	// Miss
	_, ok := CacheGet(ctx, key)
	if ok {
		t.Error("expected cache miss on empty cache")
	}

	// Set
	CacheSet(ctx, key, "a public subreddit description")

	// Hit
	got, ok := CacheGet(ctx, key)
	if !ok {
		t.Fatal("expected cache hit after set")
	}
	if got != "a public subreddit description" {
		t.Errorf("got %q", got)
	}
}

func TestCacheExpiry(t *testing.T) {
	InitCache("", 10*time.Millisecond, 100, 5*time.Minute)

	ctx := context.Background()
	key := CacheKey("test", "expiry")
	CacheSet(ctx, key, "short-lived")

	time.Sleep(20 * time.Millisecond)

	if _, ok := CacheGet(ctx, key); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestCacheEviction(t *testing.T) {
	InitCache("", 1*time.Minute, 10, 5*time.Minute)

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		CacheSet(ctx, CacheKey("evict", fmt.Sprint(i)), fmt.Sprint(i))
	}

	count := 0
	auxCache.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 10 {
		t.Errorf("L1 holds %d entries, want <= 10", count)
	}
}
