package zim

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// SearchHit is one globally ranked hit in a merged result set.
type SearchHit struct {
	Archive    string  `json:"zim_file"`
	Path       string  `json:"path"`
	Title      string  `json:"title"`
	Score      float64 `json:"score"`
	Preview    string  `json:"preview"`
	IsRedirect bool    `json:"is_redirect"`
}

// ResultSet is the full merged outcome of one federated query. Immutable once
// built; pagination only slices Hits.
type ResultSet struct {
	Query     string
	Archives  []string
	Hits      []SearchHit
	Failures  map[string]string
	CreatedAt time.Time
}

// resultCacheKey builds the cache key for a normalized query and a sorted
// archive-name set.
func resultCacheKey(query string, archives []string) string {
	return query + "\x00" + strings.Join(archives, "\x00")
}

// ResultCache is an entry-count-bounded LRU of merged result sets. Bounding
// by entry count keeps memory proportional to the number of distinct queries
// rather than to the size of any one merged hit list.
type ResultCache struct {
	capacity int

	mu    sync.Mutex
	order *list.List // front = most recently used
	items map[string]*list.Element
}

type resultCacheItem struct {
	key string
	set *ResultSet
}

// NewResultCache creates a cache holding at most capacity result sets.
func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ResultCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached result set for the key, or nil on miss.
func (c *ResultCache) Get(key string) *ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil
	}
	c.order.MoveToFront(el)
	return el.Value.(*resultCacheItem).set
}

// Put stores a result set, evicting the least recently used entry when full.
func (c *ResultCache) Put(key string, set *ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*resultCacheItem).set = set
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*resultCacheItem).key)
		}
	}
	c.items[key] = c.order.PushFront(&resultCacheItem{key: key, set: set})
}

// Purge drops every cached result set. Called when the tracked archive set
// changes, since stale results must not be served after files come or go.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len returns the number of cached result sets.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
