package revocation

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/AlibekovAA/panel-auth/internal/common/clock"
	"github.com/AlibekovAA/panel-auth/internal/common/crypto"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
	"github.com/AlibekovAA/panel-auth/internal/observability/metrics"
)

type entry struct {
	key       string
	expiresAt time.Time
	index     int
}

type expiryHeap []*entry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }

func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// MemoryCache is a bounded in-process Cache. When full it drops entries that
// already expired and, failing that, the entry closest to its own expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   expiryHeap
	maxSize int
	clock   clock.Clock
	log     *logger.Logger
}

func NewMemoryCache(maxSize int, clk clock.Clock, log *logger.Logger) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &MemoryCache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		clock:   clk,
		log:     log,
	}
}

func (c *MemoryCache) Add(ctx context.Context, token string, expiresAt time.Time) error {
	now := c.clock.Now()
	if !expiresAt.After(now) {
		return nil
	}

	key := crypto.HashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if expiresAt.After(e.expiresAt) {
			e.expiresAt = expiresAt
			heap.Fix(&c.order, e.index)
		}
		return nil
	}

	if len(c.entries) >= c.maxSize {
		c.purgeLocked(now)
	}
	if len(c.entries) >= c.maxSize {
		evicted := heap.Pop(&c.order).(*entry)
		delete(c.entries, evicted.key)
		metrics.RevocationCacheForcedEvictions.Inc()
		if c.log != nil {
			c.log.WithFields(ctx, logger.Fields{
				"action":     "revocation_cache_evict",
				"max_size":   c.maxSize,
				"expires_in": evicted.expiresAt.Sub(now).String(),
			}).Warn("revocation cache full, evicted unexpired entry")
		}
	}

	e := &entry{key: key, expiresAt: expiresAt}
	heap.Push(&c.order, e)
	c.entries[key] = e
	metrics.RevocationCacheSize.Set(float64(len(c.entries)))
	return nil
}

func (c *MemoryCache) IsRevoked(_ context.Context, token string) (bool, error) {
	key := crypto.HashToken(token)
	now := c.clock.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return e.expiresAt.After(now), nil
}

func (c *MemoryCache) PurgeExpired(_ context.Context) (int, error) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.purgeLocked(now), nil
}

func (c *MemoryCache) purgeLocked(now time.Time) int {
	purged := 0
	for c.order.Len() > 0 && !c.order[0].expiresAt.After(now) {
		e := heap.Pop(&c.order).(*entry)
		delete(c.entries, e.key)
		purged++
	}
	if purged > 0 {
		metrics.RevocationCachePurged.Add(float64(purged))
		metrics.RevocationCacheSize.Set(float64(len(c.entries)))
	}
	return purged
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
