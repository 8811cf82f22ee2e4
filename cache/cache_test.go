package cache

import (
	"errors"
	"strconv"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	c := New[string, int](100)
	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.Capacity() != 100 {
		t.Errorf("expected capacity 100, got %d", c.Capacity())
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestGetSet(t *testing.T) {
	c := New[string, int](10)

	c.Set("key1", 42)

	val, ok := c.Get("key1")
	if !ok {
		t.Error("expected key1 to exist")
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}

	if _, ok = c.Get("nonexistent"); ok {
		t.Error("expected nonexistent key to not exist")
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[string, int](10)
	createCalled := 0

	val, err := c.GetOrCreate("key1", func() (int, error) {
		createCalled++
		return 100, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if val != 100 {
		t.Errorf("expected 100, got %d", val)
	}
	if createCalled != 1 {
		t.Errorf("expected create called once, got %d", createCalled)
	}

	val, err = c.GetOrCreate("key1", func() (int, error) {
		createCalled++
		return 200, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if val != 100 {
		t.Errorf("expected 100 (cached), got %d", val)
	}
	if createCalled != 1 {
		t.Errorf("expected create still called once, got %d", createCalled)
	}
}

func TestGetOrCreateError(t *testing.T) {
	c := New[string, int](10)
	boom := errors.New("boom")

	_, err := c.GetOrCreate("key1", func() (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected create error, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed create should not be cached, got %d entries", c.Len())
	}

	// A later successful create proceeds normally.
	val, err := c.GetOrCreate("key1", func() (int, error) {
		return 7, nil
	})
	if err != nil || val != 7 {
		t.Fatalf("GetOrCreate after error = %d, %v", val, err)
	}
}

func TestDelete(t *testing.T) {
	c := New[string, int](10)

	c.Set("key1", 42)

	if !c.Delete("key1") {
		t.Error("expected Delete to return true for existing key")
	}
	if _, ok := c.Get("key1"); ok {
		t.Error("expected key1 to be deleted")
	}
	if c.Delete("nonexistent") {
		t.Error("expected Delete to return false for non-existing key")
	}
}

func TestClear(t *testing.T) {
	c := New[string, int](10)

	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Set("key3", 3)

	if c.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.Len())
	}

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected 0 entries after clear, got %d", c.Len())
	}
}

func TestEvictionCallsOnEvict(t *testing.T) {
	// Single-entry shards make eviction deterministic per shard.
	c := New[string, int](1)
	var evicted []int
	c.OnEvict(func(v int) { evicted = append(evicted, v) })

	for i := 0; i < 64; i++ {
		c.Set(strconv.Itoa(i), i)
	}

	// Every shard holds at most one entry, the rest were evicted.
	if c.Len() > shardCount {
		t.Errorf("expected at most %d entries, got %d", shardCount, c.Len())
	}
	if len(evicted) != 64-c.Len() {
		t.Errorf("evict callback fired %d times, want %d", len(evicted), 64-c.Len())
	}
}

func TestClearCallsOnEvict(t *testing.T) {
	c := New[string, int](10)
	evicted := 0
	c.OnEvict(func(int) { evicted++ })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if evicted != 2 {
		t.Errorf("evict callback fired %d times, want 2", evicted)
	}
}

func TestStats(t *testing.T) {
	c := New[string, int](10)

	c.Set("key1", 1)
	c.Set("key2", 2)
	c.Get("key1")
	c.Get("missing")

	stats := c.Stats()
	if stats.Len != 2 {
		t.Errorf("expected Len=2, got %d", stats.Len)
	}
	if stats.Capacity != 10 {
		t.Errorf("expected Capacity=10, got %d", stats.Capacity)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected HitRate=0.5, got %v", stats.HitRate)
	}
}

func TestConcurrent(t *testing.T) {
	c := New[int, int](1000)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(n*100+j, n*100+j)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get(n*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() == 0 {
		t.Error("expected non-empty cache after concurrent operations")
	}
}
