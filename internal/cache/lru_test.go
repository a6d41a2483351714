package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLRU(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(2, time.Minute)

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatal("expected miss on empty cache")
	}
	_ = c.Set(ctx, "a", "1")
	if v, ok, err := c.Get(ctx, "a"); !ok || err != nil || v != "1" {
		t.Fatalf("got %q %v %v", v, ok, err)
	}
	_ = c.Set(ctx, "a", "2")
	if v, _, _ := c.Get(ctx, "a"); v != "2" {
		t.Fatalf("overwrite failed, got %q", v)
	}
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(2, time.Minute)

	_ = c.Set(ctx, "a", "1")
	_ = c.Set(ctx, "b", "2")
	_, _, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", "3")

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatal("a should survive as recently used")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, clock := newTestLRU(10, time.Minute)

	_ = c.Set(ctx, "a", "1")
	_ = c.Set(ctx, "b", "2")
	clock.Advance(2 * time.Minute)
	_ = c.Set(ctx, "c", "3")

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatal("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d, want 1", c.Size())
	}
}

func TestLRUCacheDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLRU(10, time.Minute)
	for _, k := range []string{"a", "b", "c"} {
		_ = c.Set(ctx, k, k)
	}

	_ = c.Delete(ctx, "a", "missing")
	if c.Size() != 2 {
		t.Fatalf("size after delete = %d", c.Size())
	}
	_ = c.Clear(ctx)
	if c.Size() != 0 {
		t.Fatalf("size after clear = %d", c.Size())
	}
	_ = c.Set(ctx, "d", "d")
	if _, ok, _ := c.Get(ctx, "d"); !ok {
		t.Fatal("cache unusable after clear")
	}
}

type countingCleaner struct{ calls chan struct{} }

func (c *countingCleaner) CleanExpired() int {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 0
}

func TestManagerRunsCleanup(t *testing.T) {
	m := NewManager(nil)
	cl := &countingCleaner{calls: make(chan struct{}, 1)}
	m.Register(cl)
	m.StartCleanup(5 * time.Millisecond)
	defer m.Stop()

	select {
	case <-cl.calls:
	case <-time.After(time.Second):
		t.Fatal("cleanup never ran")
	}
}
