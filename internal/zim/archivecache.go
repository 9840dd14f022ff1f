package zim

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jonesrussell/zim-mcp/internal/logger"
)

// Handle wraps one live Reader. Reader calls on a handle are serialized by
// the handle's own mutex; distinct archives proceed in parallel. The archive
// cache owns the handle and will not evict it while its refcount is nonzero.
type Handle struct {
	name   string
	reader Reader
	cache  *ArchiveCache

	// mu serializes access to the underlying reader.
	mu sync.Mutex

	// Guarded by cache.mu.
	refs       int
	lastAccess uint64
	detached   bool
}

// Name returns the handle's logical archive name.
func (h *Handle) Name() string { return h.name }

// Release returns the handle to the cache. Callers must not use the handle
// after releasing it.
func (h *Handle) Release() {
	h.cache.release(h)
}

// Metadata reads the archive's metadata.
func (h *Handle) Metadata() (Metadata, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reader.Metadata()
}

// SearchFullText queries the archive's full-text index.
func (h *Handle) SearchFullText(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reader.SearchFullText(ctx, query, limit, offset)
}

// SearchTitles queries the archive's title index.
func (h *Handle) SearchTitles(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reader.SearchTitles(ctx, query, limit, offset)
}

// GetEntry fetches one entry by path.
func (h *Handle) GetEntry(path string) (*Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reader.GetEntry(path)
}

// WalkEntries visits entries in listing order until fn returns false.
func (h *Handle) WalkEntries(fn func(EntryInfo) bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reader.WalkEntries(fn)
}

// RandomEntry returns one randomly chosen entry.
func (h *Handle) RandomEntry() (EntryInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reader.RandomEntry()
}

// ArchiveCache bounds the number of simultaneously open archive readers.
// Opens are lazy and single-flight; eviction is least-recently-used among
// handles with zero active references. When every handle is referenced the
// cap is soft: the new open proceeds and the cache trims on the next release.
type ArchiveCache struct {
	capacity int
	open     OpenFunc
	log      logger.Logger

	// onEvict is invoked (outside the lock) with the logical name of every
	// handle that gets closed, so dependent caches can invalidate.
	onEvict func(name string)

	group singleflight.Group

	mu      sync.Mutex
	handles map[string]*Handle
	clock   uint64
}

// NewArchiveCache creates a cache holding at most capacity open readers.
func NewArchiveCache(capacity int, open OpenFunc, log logger.Logger) *ArchiveCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &ArchiveCache{
		capacity: capacity,
		open:     open,
		log:      log,
		handles:  make(map[string]*Handle),
	}
}

// SetEvictionHook registers the invalidation callback. Must be called before
// the cache is used.
func (c *ArchiveCache) SetEvictionHook(fn func(name string)) { c.onEvict = fn }

// Acquire returns an open handle for the archive described by d, opening it
// on first use. Concurrent acquires for the same not-yet-open archive share
// one open attempt and observe the same outcome. The returned handle must be
// released.
func (c *ArchiveCache) Acquire(ctx context.Context, d Descriptor) (*Handle, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.mu.Lock()
		if h, ok := c.handles[d.Name]; ok {
			c.touchLocked(h)
			h.refs++
			c.mu.Unlock()
			return h, nil
		}
		c.mu.Unlock()

		_, err, _ := c.group.Do(d.Name, func() (any, error) {
			reader, err := c.open(d.Path)
			if err != nil {
				return nil, OpenFailureError(d.Name, err)
			}

			h := &Handle{name: d.Name, reader: reader, cache: c}

			c.mu.Lock()
			c.touchLocked(h)
			c.handles[d.Name] = h
			c.mu.Unlock()

			c.log.Debug("opened archive", zap.String("archive", d.Name))
			return h, nil
		})
		if err != nil {
			return nil, err
		}

		// Re-acquire under the lock instead of trusting the shared value:
		// the handle could have been evicted between Do returning and now.
		// Trimming happens only after the reference is taken, so a fresh
		// handle can never be chosen as its own eviction victim.
		c.mu.Lock()
		if h, ok := c.handles[d.Name]; ok {
			c.touchLocked(h)
			h.refs++
			victims := c.trimLocked()
			c.mu.Unlock()
			c.closeVictims(victims)
			return h, nil
		}
		c.mu.Unlock()
	}
}

// Contains reports whether the archive is currently open. Used for cache
// introspection in responses; never opens anything.
func (c *ArchiveCache) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handles[name]
	return ok
}

// Len returns the number of currently open handles.
func (c *ArchiveCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Evict closes the named archive's handle if open. A handle still in use is
// detached immediately (so new acquires reopen the file) and closed when its
// last reference is released.
func (c *ArchiveCache) Evict(name string) {
	c.mu.Lock()
	h, ok := c.handles[name]
	if ok {
		delete(c.handles, name)
		if h.refs > 0 {
			h.detached = true
			h = nil
		}
	}
	c.mu.Unlock()

	if ok && h != nil {
		c.closeVictims([]*Handle{h})
	}
}

// CloseAll tears down every open handle. Intended for process shutdown only.
func (c *ArchiveCache) CloseAll() {
	c.mu.Lock()
	victims := make([]*Handle, 0, len(c.handles))
	for _, h := range c.handles {
		victims = append(victims, h)
	}
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()

	c.closeVictims(victims)
}

func (c *ArchiveCache) release(h *Handle) {
	c.mu.Lock()
	h.refs--
	closeNow := h.detached && h.refs <= 0
	var victims []*Handle
	if !closeNow {
		victims = c.trimLocked()
	}
	c.mu.Unlock()

	if closeNow {
		c.closeVictims([]*Handle{h})
		return
	}
	c.closeVictims(victims)
}

// touchLocked bumps the handle's last-access stamp. The counter is monotonic
// so eviction ordering is exact even within one wall-clock tick.
func (c *ArchiveCache) touchLocked(h *Handle) {
	c.clock++
	h.lastAccess = c.clock
}

// trimLocked removes least-recently-used zero-ref handles until the cache is
// within capacity, returning them for the caller to close outside the lock.
func (c *ArchiveCache) trimLocked() []*Handle {
	var victims []*Handle
	for len(c.handles) > c.capacity {
		var oldest *Handle
		for _, h := range c.handles {
			if h.refs > 0 {
				continue
			}
			if oldest == nil || h.lastAccess < oldest.lastAccess {
				oldest = h
			}
		}
		if oldest == nil {
			// every handle is referenced: soft cap, stay over capacity
			break
		}
		delete(c.handles, oldest.name)
		victims = append(victims, oldest)
	}
	return victims
}

func (c *ArchiveCache) closeVictims(victims []*Handle) {
	for _, h := range victims {
		h.mu.Lock()
		err := h.reader.Close()
		h.mu.Unlock()
		if err != nil {
			c.log.Warn("close archive reader",
				zap.String("archive", h.name), zap.Error(err))
		}
		if c.onEvict != nil {
			c.onEvict(h.name)
		}
	}
}
