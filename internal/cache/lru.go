package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/aira-metrics/dashboard/internal/recovery"
)

// entry is one cached value
type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	if e.ttl <= 0 {
		return false
	}
	return now.Sub(e.createdAt) > e.ttl
}

// LRU implements Cache with least-recently-used eviction
type LRU[V any] struct {
	config       Config
	items        map[string]*list.Element
	evictionList *list.List
	stats        Stats
	mu           sync.Mutex
	now          func() time.Time
	stopCleanup  chan struct{}
	cleanupDone  chan struct{}
	closeOnce    sync.Once
}

var _ Cache[string] = (*LRU[string])(nil)

// NewLRU creates a cache and starts its background sweep when
// config.CleanupPeriod is set.
func NewLRU[V any](config Config) *LRU[V] {
	if config.MaxSize <= 0 {
		config.MaxSize = DefaultConfig().MaxSize
	}
	c := &LRU[V]{
		config:       config,
		items:        make(map[string]*list.Element),
		evictionList: list.New(),
		stats: Stats{
			MaxSize:     config.MaxSize,
			LastCleanup: time.Now(),
		},
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	if config.CleanupPeriod > 0 {
		recovery.SafeGo("cache cleanup", c.backgroundCleanup)
	} else {
		close(c.cleanupDone)
	}
	return c
}

// Get retrieves an unexpired item
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	element, ok := c.items[key]
	if !ok {
		c.miss()
		return zero, false
	}

	e := element.Value.(*entry[V])
	if e.expired(c.now()) {
		if !c.config.KeepExpired {
			c.removeElement(element)
		}
		c.miss()
		return zero, false
	}

	c.evictionList.MoveToFront(element)
	if c.config.EnableStats {
		c.stats.Hits++
	}
	return e.value, true
}

// GetStale retrieves an item regardless of expiry, with its age
func (c *LRU[V]) GetStale(key string) (V, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	element, ok := c.items[key]
	if !ok {
		c.miss()
		return zero, 0, false
	}

	e := element.Value.(*entry[V])
	c.evictionList.MoveToFront(element)
	if c.config.EnableStats {
		if e.expired(c.now()) {
			c.stats.StaleHits++
		} else {
			c.stats.Hits++
		}
	}
	return e.value, c.now().Sub(e.createdAt), true
}

// Set stores an item with the default TTL
func (c *LRU[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.config.DefaultTTL)
}

// SetWithTTL stores an item with a custom TTL
func (c *LRU[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		e := element.Value.(*entry[V])
		e.value = value
		e.createdAt = c.now()
		e.ttl = ttl
		c.evictionList.MoveToFront(element)
		return
	}

	element := c.evictionList.PushFront(&entry[V]{
		key:       key,
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
	})
	c.items[key] = element

	for c.evictionList.Len() > c.config.MaxSize {
		c.evictOldest()
	}
}

// Delete removes an item
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		c.removeElement(element)
	}
}

// Clear removes all items with a specific prefix
func (c *LRU[V]) Clear(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, element := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeElement(element)
		}
	}
}

// Cleanup removes entries past their TTL or older than maxAge. Expired
// entries are kept when the cache retains stale values.
func (c *LRU[V]) Cleanup(maxAge time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, element := range c.items {
		e := element.Value.(*entry[V])
		tooOld := maxAge > 0 && now.Sub(e.createdAt) > maxAge
		if tooOld || (!c.config.KeepExpired && e.expired(now)) {
			c.removeElement(element)
		}
	}
	c.stats.LastCleanup = now
}

// Keys lists the keys from most to least recently used
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.evictionList.Len())
	for e := c.evictionList.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry[V]).key)
	}
	return keys
}

// Size returns the current cache size
func (c *LRU[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns cache statistics
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = len(c.items)
	if total := stats.Hits + stats.StaleHits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits+stats.StaleHits) / float64(total)
	}
	return stats
}

// Close stops background cleanup and drops all entries. Safe to call twice.
func (c *LRU[V]) Close() error {
	c.closeOnce.Do(func() {
		if c.config.CleanupPeriod > 0 {
			close(c.stopCleanup)
		}
		<-c.cleanupDone

		c.mu.Lock()
		defer c.mu.Unlock()
		c.items = make(map[string]*list.Element)
		c.evictionList = list.New()
	})
	return nil
}

func (c *LRU[V]) miss() {
	if c.config.EnableStats {
		c.stats.Misses++
	}
}

// removeElement drops an element (caller must hold lock)
func (c *LRU[V]) removeElement(element *list.Element) {
	e := element.Value.(*entry[V])
	delete(c.items, e.key)
	c.evictionList.Remove(element)
}

// evictOldest drops the least recently used entry (caller must hold lock)
func (c *LRU[V]) evictOldest() {
	if oldest := c.evictionList.Back(); oldest != nil {
		c.removeElement(oldest)
		if c.config.EnableStats {
			c.stats.Evictions++
		}
	}
}

func (c *LRU[V]) backgroundCleanup() {
	defer close(c.cleanupDone)

	ticker := time.NewTicker(c.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup(0)
		case <-c.stopCleanup:
			return
		}
	}
}
