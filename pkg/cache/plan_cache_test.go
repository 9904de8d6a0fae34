package cache

import (
	"testing"
	"time"

	"github.com/graphforge/graphforge/pkg/ast"
)

func TestNewPlanCache(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		c := NewPlanCache(100, 5*time.Minute)
		if c.maxSize != 100 {
			t.Errorf("maxSize = %d, want 100", c.maxSize)
		}
		if c.ttl != 5*time.Minute {
			t.Errorf("ttl = %v, want 5m", c.ttl)
		}
		if !c.enabled {
			t.Error("cache should be enabled by default")
		}
	})

	t.Run("zero maxSize uses default", func(t *testing.T) {
		c := NewPlanCache(0, time.Minute)
		if c.maxSize != 1000 {
			t.Errorf("maxSize = %d, want 1000 (default)", c.maxSize)
		}
	})

	t.Run("negative maxSize uses default", func(t *testing.T) {
		c := NewPlanCache(-10, time.Minute)
		if c.maxSize != 1000 {
			t.Errorf("maxSize = %d, want 1000 (default)", c.maxSize)
		}
	})

	t.Run("zero TTL is valid (no expiration)", func(t *testing.T) {
		c := NewPlanCache(100, 0)
		if c.ttl != 0 {
			t.Errorf("ttl = %v, want 0", c.ttl)
		}
	})
}

func TestPlanCache_Key(t *testing.T) {
	c := NewPlanCache(100, time.Minute)

	t.Run("same query same key", func(t *testing.T) {
		k1 := c.Key("MATCH (n) RETURN n")
		k2 := c.Key("MATCH (n) RETURN n")
		if k1 != k2 {
			t.Errorf("same query produced different keys: %d vs %d", k1, k2)
		}
	})

	t.Run("different query different key", func(t *testing.T) {
		k1 := c.Key("MATCH (n) RETURN n")
		k2 := c.Key("MATCH (m) RETURN m")
		if k1 == k2 {
			t.Error("different queries produced same key")
		}
	})
}

func TestPlanCache_GetPutMiss(t *testing.T) {
	c := NewPlanCache(10, time.Minute)
	key := c.Key("MATCH (n) RETURN n")

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	want := &CachedPlan{Query: &ast.Query{}}
	c.Put(key, want)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got != want {
		t.Error("Get returned a different *CachedPlan than Put stored")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestPlanCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewPlanCache(2, 0)
	k1, k2, k3 := c.Key("Q1"), c.Key("Q2"), c.Key("Q3")

	c.Put(k1, &CachedPlan{})
	c.Put(k2, &CachedPlan{})
	c.Get(k1) // touch k1 so k2 becomes the LRU victim
	c.Put(k3, &CachedPlan{})

	if _, ok := c.Get(k2); ok {
		t.Error("k2 should have been evicted as least recently used")
	}
	if _, ok := c.Get(k1); !ok {
		t.Error("k1 should still be cached")
	}
	if _, ok := c.Get(k3); !ok {
		t.Error("k3 should still be cached")
	}
}

func TestPlanCache_TTLExpiration(t *testing.T) {
	c := NewPlanCache(10, time.Millisecond)
	key := c.Key("MATCH (n) RETURN n")
	c.Put(key, &CachedPlan{})

	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("expected entry to have expired")
	}
}

func TestPlanCache_ClearAndSetEnabled(t *testing.T) {
	c := NewPlanCache(10, 0)
	key := c.Key("MATCH (n) RETURN n")
	c.Put(key, &CachedPlan{})

	c.Clear()
	if c.Len() != 0 {
		t.Error("expected cache to be empty after Clear")
	}

	c.Put(key, &CachedPlan{})
	c.SetEnabled(false)
	if _, ok := c.Get(key); ok {
		t.Error("disabled cache should always miss")
	}

	c.SetEnabled(true)
	c.Put(key, &CachedPlan{})
	if _, ok := c.Get(key); !ok {
		t.Error("re-enabled cache should cache normally")
	}
}
