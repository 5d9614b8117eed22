package viewcounter

import (
	"context"
	"testing"
	"time"

	"github.com/eringen/viewcounter/counter"
)

func TestTopCacheServesSnapshotUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemoryStore()
	defer store.Close()
	_, _ = store.Increment(ctx, "/a")

	cache := NewTopCache(store, time.Minute)
	total, pages, err := cache.Top(ctx, 0)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if total != 1 || len(pages) != 1 {
		t.Fatalf("unexpected first load: total=%d pages=%v", total, pages)
	}

	_, _ = store.Increment(ctx, "/b")
	if total, _, _ := cache.Top(ctx, 0); total != 1 {
		t.Fatalf("expected cached total 1, got %d", total)
	}

	cache.Invalidate()
	total, pages, _ = cache.Top(ctx, 0)
	if total != 2 || len(pages) != 2 {
		t.Fatalf("expected reload after Invalidate, got total=%d pages=%v", total, pages)
	}
}

func TestTopCacheDisabled(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemoryStore()
	defer store.Close()

	cache := NewTopCache(store, -1)
	for i := int64(1); i <= 3; i++ {
		_, _ = store.Increment(ctx, "/a")
		if total, _, _ := cache.Top(ctx, 0); total != i {
			t.Fatalf("expected fresh total %d, got %d", i, total)
		}
	}
}

func TestTopCacheLimitReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemoryStore()
	defer store.Close()
	for _, s := range []string{"/a", "/b", "/b", "/c", "/c", "/c"} {
		_, _ = store.Increment(ctx, s)
	}

	cache := NewTopCache(store, time.Minute)
	_, pages, err := cache.Top(ctx, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(pages) != 2 || pages[0].Slug != "/c" || pages[1].Slug != "/b" {
		t.Fatalf("unexpected top pages %v", pages)
	}
	pages[0].Views = 999
	_, again, _ := cache.Top(ctx, 2)
	if again[0].Views != 3 {
		t.Fatal("mutating a result changed the cached snapshot")
	}
}
