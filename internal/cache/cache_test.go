package cache

import (
	"testing"
	"time"
)

func TestLRUGetSetDelete(t *testing.T) {
	c := NewLRU[int](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("empty cache must miss")
	}

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit with 1, got %d %v", v, ok)
	}

	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("overwrite lost, got %d", v)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("deleted key must miss")
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[string](2, time.Minute)
	c.Set("a", "a")
	c.Set("b", "b")

	// Touch a so b is the eviction candidate.
	c.Get("a")
	c.Set("c", "c")

	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry must be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("recently used entry must survive")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry must miss")
	}
	if n := c.SweepExpired(); n != 1 {
		// Get already dropped "a"; the sweep takes "b".
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}
