package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rrepohub/rrepohub-backend/models"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rrepohub_file_cache_hits_total",
		Help: "File detail cache hits.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rrepohub_file_cache_misses_total",
		Help: "File detail cache misses.",
	})
)

type FileGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.File, error)
}

// FileCache is a read-through TTL cache of file records by id.
type FileCache struct {
	files FileGetter
	cache *expirable.LRU[uuid.UUID, models.File]

	// epoch counts invalidations. A miss only fills the cache if no Delete
	// ran while the record was being fetched.
	mu    sync.Mutex
	epoch uint64
}

func NewFileCache(files FileGetter, size int, ttl time.Duration) *FileCache {
	return &FileCache{
		files: files,
		cache: expirable.NewLRU[uuid.UUID, models.File](size, nil, ttl),
	}
}

func (c *FileCache) Get(ctx context.Context, id uuid.UUID) (*models.File, error) {
	if f, ok := c.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return &f, nil
	}
	cacheMissesTotal.Inc()

	c.mu.Lock()
	start := c.epoch
	c.mu.Unlock()

	f, err := c.files.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.epoch == start {
		c.cache.Add(id, *f)
	}
	c.mu.Unlock()
	return f, nil
}

func (c *FileCache) Delete(id uuid.UUID) {
	c.mu.Lock()
	c.epoch++
	c.cache.Remove(id)
	c.mu.Unlock()
}
