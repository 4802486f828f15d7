// Package cache is a fixed-capacity, in-process LRU result cache. Concurrent
// misses for the same key are collapsed into one computation.
package cache

import (
	"container/list"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/infospark/pkg/metrics"
)

type entry[V any] struct {
	key   string
	value V
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}

// LRU maps keys to values, evicting the least recently used entry when
// full. A capacity of zero disables caching. Safe for concurrent use.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
	// generation changes on Purge so computations started before a purge
	// cannot repopulate the cache.
	generation uint64

	group     singleflight.Group
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an LRU holding at most capacity entries. m may be nil.
func New[V any](capacity int, m *metrics.Metrics) *LRU[V] {
	if capacity < 0 {
		capacity = 0
	}
	return &LRU[V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		metrics:  m,
		logger:   slog.Default().With("component", "result-cache"),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.ll.MoveToFront(el)
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		if c.metrics != nil {
			c.metrics.CacheMissesTotal.Inc()
		}
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return el.Value.(*entry[V]).value, true
}

// Put inserts or replaces key, evicting the least recently used entry if the
// cache is full.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value)
}

func (c *LRU[V]) putLocked(key string, value V) {
	if c.capacity == 0 {
		return
	}
	if el, ok := c.items[key]; ok {
		el.Value.(*entry[V]).value = value
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&entry[V]{key: key, value: value})
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*entry[V]).key)
		c.evictions.Add(1)
		if c.metrics != nil {
			c.metrics.CacheEvictionsTotal.Inc()
		}
	}
}

// GetOrCompute returns the cached value for key, or runs compute once for
// all concurrent callers missing the same key and caches its result. Errors
// are not cached. The bool reports a cache hit.
func (c *LRU[V]) GetOrCompute(key string, compute func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	val, err, _ := c.group.Do(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		// a flight for key may have finished between the miss and Do
		c.mu.Lock()
		if el, ok := c.items[key]; ok && c.generation == gen {
			v := el.Value.(*entry[V]).value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.generation == gen {
			c.putLocked(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return val.(V), false, nil
}

// Purge removes every entry.
func (c *LRU[V]) Purge() {
	c.mu.Lock()
	n := c.ll.Len()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	c.generation++
	c.mu.Unlock()
	c.logger.Debug("cache purged", "entries", n)
}

// Len returns the number of cached entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Keys returns the cached keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[V]).key)
	}
	return keys
}

func (c *LRU[V]) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		Capacity:  c.capacity,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
