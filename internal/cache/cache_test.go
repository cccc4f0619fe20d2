package cache

import (
	"strconv"
	"testing"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](10)

	c.Set("key1", 42)

	val, ok := c.Get("key1")
	if !ok {
		t.Error("expected key1 to exist")
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}

	if _, ok := c.Get("nonexistent"); ok {
		t.Error("expected nonexistent key to not exist")
	}

	c.Set("key1", 7)
	if val, _ := c.Get("key1"); val != 7 {
		t.Errorf("expected replaced value 7, got %d", val)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestCacheCapacityEvictsLRU(t *testing.T) {
	c := New[int, int](3)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	// Touch 1 so 2 becomes the oldest.
	c.Get(1)
	c.Set(4, 4)

	if _, ok := c.Get(2); ok {
		t.Error("expected 2 to be evicted")
	}
	for _, k := range []int{1, 3, 4} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %d to remain", k)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("expected 1 eviction, got %d", got)
	}
}

func TestCacheSweep(t *testing.T) {
	c := New[string, int](0)

	c.NextFrame() // 1
	c.Set("old", 1)
	c.Set("busy", 2)

	c.NextFrame() // 2
	c.Get("busy")
	c.NextFrame() // 3
	c.Get("busy")
	c.Set("new", 3)

	if n := c.Sweep(1); n != 1 {
		t.Errorf("expected 1 swept entry, got %d", n)
	}
	if _, ok := c.Get("old"); ok {
		t.Error("expected old to be swept")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}

	if n := c.Sweep(5); n != 0 {
		t.Errorf("expected nothing swept, got %d", n)
	}
}

func TestCacheDelete(t *testing.T) {
	c := New[string, int](10)
	c.Set("a", 1)
	if !c.Delete("a") {
		t.Error("expected Delete to report true")
	}
	if c.Delete("a") {
		t.Error("expected second Delete to report false")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestCacheClear(t *testing.T) {
	c := New[int, int](10)
	for i := range 5 {
		c.Set(i, i)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
	c.Set(1, 1)
	if v, ok := c.Get(1); !ok || v != 1 {
		t.Error("cache unusable after Clear")
	}
}

func TestCacheStats(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")
	c.NextFrame()

	s := c.Stats()
	if s.Len != 1 || s.Capacity != 4 || s.Hits != 2 || s.Misses != 1 || s.Frame != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("expected hit rate 2/3, got %v", s.HitRate)
	}
}

func BenchmarkCacheGet(b *testing.B) {
	c := New[string, int](1000)
	for i := 0; i < 100; i++ {
		c.Set(strconv.Itoa(i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("50")
	}
}

func BenchmarkCacheSetEvict(b *testing.B) {
	c := New[int, int](64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(i, i)
	}
}
