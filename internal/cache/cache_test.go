package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ishaanrender/scrapegoat-render/internal/config"
)

func newTestCache(t *testing.T, maxEntries int) *Cache {
	t.Helper()
	return New(config.CacheConfig{
		MaxEntries:      maxEntries,
		DefaultTTL:      time.Hour,
		CompressAbove:   1024,
		CompressIntent:  "balanced",
		RemoteQueueSize: 8,
	}, slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	artifact := []byte("# Example\n\nsome rendered markdown")
	c.Set("k1", artifact, time.Hour)

	got, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit for freshly set key")
	}
	if string(got) != string(artifact) {
		t.Errorf("round-trip mismatch: got %q", got)
	}
}

func TestOverwriteReturnsNewValue(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	c.Set("k", []byte("v1"), time.Hour)
	c.Set("k", []byte("v2"), time.Hour)

	got, ok := c.Get(ctx, "k")
	if !ok || string(got) != "v2" {
		t.Errorf("expected v2 after overwrite, got %q (hit=%v)", got, ok)
	}
}

func TestExpiredEntryIsNeverVisible(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	c.Set("short", []byte("x"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expired entry returned from Get")
	}
	if c.Stats().MemoryEntries != 0 {
		t.Error("expired entry not removed on scan")
	}
}

func TestCapacityEviction(t *testing.T) {
	c := newTestCache(t, 3)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("value"), time.Hour)
	}

	if entries := c.Stats().MemoryEntries; entries > 3 {
		t.Errorf("tier exceeded capacity: %d entries", entries)
	}

	// The newest insert must always be present after eviction.
	if _, ok := c.Get(ctx, "k5"); !ok {
		t.Error("most recent insert was evicted")
	}
}

func TestLargeArtifactsAreCompressed(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()

	big := []byte(strings.Repeat("scrapegoat render artifact ", 200)) // well over 1 KiB
	c.Set("big", big, time.Hour)

	if stored := c.Stats().MemoryBytes; stored >= int64(len(big)) {
		t.Errorf("expected compressed storage < %d bytes, got %d", len(big), stored)
	}

	got, ok := c.Get(ctx, "big")
	if !ok || string(got) != string(big) {
		t.Error("compressed artifact did not round-trip")
	}
}

func TestDeleteAndClearAll(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	c.Set("a", []byte("1"), time.Hour)
	c.Set("b", []byte("2"), time.Hour)

	if !c.Delete(ctx, "a") {
		t.Error("Delete returned false for a present key")
	}
	if c.Delete(ctx, "a") {
		t.Error("Delete returned true for an absent key")
	}

	cleared, _ := c.ClearAll(ctx)
	if cleared != 1 {
		t.Errorf("expected 1 cleared entry, got %d", cleared)
	}
	if c.Stats().MemoryEntries != 0 {
		t.Error("entries remain after ClearAll")
	}
}

func TestHitRate(t *testing.T) {
	c := newTestCache(t, 100)
	ctx := context.Background()

	c.Set("k", []byte("v"), time.Hour)
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "missing")

	st := c.Stats()
	if st.TotalHits != 2 || st.TotalMisses != 1 {
		t.Fatalf("hits=%d misses=%d, want 2/1", st.TotalHits, st.TotalMisses)
	}
	if rate := st.HitRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("hit rate = %f, want ~0.666", rate)
	}
}

func TestEvictionPrefersColdLargeEntries(t *testing.T) {
	tier := newMemTier(2)
	now := time.Now()

	hot := &entry{Key: "hot", CreatedAt: now, TTL: time.Hour, HitCount: 10, SizeBytes: 100}
	cold := &entry{Key: "cold", CreatedAt: now.Add(-100 * time.Hour), TTL: 200 * time.Hour, HitCount: 0, SizeBytes: 100000}
	tier.set(hot)
	tier.set(cold)

	tier.set(&entry{Key: "new", CreatedAt: now, TTL: time.Hour, SizeBytes: 10})

	if _, ok := tier.entries["cold"]; ok {
		t.Error("expected the cold large entry to be evicted first")
	}
	if _, ok := tier.entries["hot"]; !ok {
		t.Error("hot entry should have survived eviction")
	}
}
