package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ishaanrender/scrapegoat-render/internal/config"
)

// Stats summarizes the cache's current contents and hit ratio.
type Stats struct {
	MemoryEntries int
	MemoryBytes   int64
	RemoteEnabled bool
	TotalHits     int64
	TotalMisses   int64
}

func (s Stats) HitRate() float64 {
	total := s.TotalHits + s.TotalMisses
	if total == 0 {
		return 0
	}
	return float64(s.TotalHits) / float64(total)
}

// remoteWrite is one queued background write to the remote tier.
type remoteWrite struct {
	key  string
	data []byte
	algo Algorithm
	ttl  time.Duration
}

// Cache composes a memory tier with an optional Redis-backed remote
// tier. Writes go to memory synchronously and to Redis asynchronously
// so a slow or unavailable remote tier never blocks the scrape
// pipeline.
type Cache struct {
	mem    *memTier
	remote *remoteTier
	intent CompressionIntent
	threshold int
	defaultTTL time.Duration

	writes chan remoteWrite
	logger *slog.Logger

	hits, misses atomic.Int64
}

// New builds a Cache from configuration. If cfg.RedisEnabled is false
// the remote tier is nil and every operation degrades to memory-only.
func New(cfg config.CacheConfig, logger *slog.Logger) *Cache {
	var remote *remoteTier
	if cfg.RedisEnabled {
		remote = newRemoteTier(cfg.RedisAddr)
	}

	c := &Cache{
		mem:        newMemTier(cfg.MaxEntries),
		remote:     remote,
		intent:     CompressionIntent(cfg.CompressIntent),
		threshold:  cfg.CompressAbove,
		defaultTTL: cfg.DefaultTTL,
		writes:     make(chan remoteWrite, cfg.RemoteQueueSize),
		logger:     logger.With("component", "cache"),
	}

	if remote != nil {
		go c.remoteWriter()
	}
	return c
}

// remoteWriter drains queued writes onto the remote tier, one at a time,
// off the caller's goroutine.
func (c *Cache) remoteWriter() {
	ctx := context.Background()
	for w := range c.writes {
		if err := c.remote.set(ctx, w.key, w.data, w.algo, w.ttl); err != nil {
			c.logger.Warn("remote cache write failed", "key", w.key, "error", err)
		}
	}
}

// Get tries memory first, then the remote tier, promoting a remote hit
// into memory before returning it.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if e, ok := c.mem.get(key); ok {
		raw, err := decompress(e.Artifact, e.CompressionAlgorithm)
		if err != nil {
			c.logger.Warn("memory cache decompress failed", "key", key, "error", err)
		} else {
			c.hits.Add(1)
			return raw, true
		}
	}

	if c.remote != nil {
		data, algo, found, err := c.remote.get(ctx, key)
		if err != nil {
			c.logger.Warn("remote cache read failed", "key", key, "error", err)
		} else if found {
			raw, err := decompress(data, algo)
			if err != nil {
				c.logger.Warn("remote cache decompress failed", "key", key, "error", err)
			} else {
				c.mem.set(&entry{
					Key:                  key,
					Artifact:             data,
					CompressionAlgorithm: algo,
					CreatedAt:            time.Now(),
					TTL:                  c.defaultTTL,
					SizeBytes:            len(data),
				})
				c.hits.Add(1)
				return raw, true
			}
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set writes through memory synchronously and queues a remote write.
func (c *Cache) Set(key string, artifact []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	compressed, algo, err := compress(artifact, c.intent, c.threshold)
	if err != nil {
		c.logger.Warn("cache compression failed, storing verbatim", "key", key, "error", err)
		compressed, algo = artifact, AlgorithmNone
	}

	c.mem.set(&entry{
		Key:                  key,
		Artifact:             compressed,
		CompressionAlgorithm: algo,
		CreatedAt:            time.Now(),
		TTL:                  ttl,
		SizeBytes:            len(compressed),
	})

	if c.remote != nil {
		select {
		case c.writes <- remoteWrite{key: key, data: compressed, algo: algo, ttl: ttl}:
		default:
			c.logger.Warn("remote cache write queue full, dropping write", "key", key)
		}
	}
}

// Delete removes a key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	found := c.mem.delete(key)
	if c.remote != nil {
		if err := c.remote.delete(ctx, key); err != nil {
			c.logger.Warn("remote cache delete failed", "key", key, "error", err)
		}
	}
	return found
}

// ClearAll empties both tiers, returning the count and bytes freed
// from the memory tier (the remote tier's size is not tracked locally).
func (c *Cache) ClearAll(ctx context.Context) (int, int64) {
	count, freed := c.mem.clearAll()
	if c.remote != nil {
		if err := c.remote.clearAll(ctx); err != nil {
			c.logger.Warn("remote cache clear failed", "error", err)
		}
	}
	return count, freed
}

// Stats reports the cache's current state.
func (c *Cache) Stats() Stats {
	return Stats{
		MemoryEntries: c.mem.len(),
		MemoryBytes:   c.mem.totalBytes(),
		RemoteEnabled: c.remote != nil,
		TotalHits:     c.hits.Load(),
		TotalMisses:   c.misses.Load(),
	}
}
