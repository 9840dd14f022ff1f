package zim

import (
	"context"
	"sync"
)

// MetadataCache memoizes per-archive metadata keyed by logical name. Archive
// content is immutable for the process lifetime, so entries have no TTL and
// live until explicit invalidation (registry re-discovery or handle eviction).
type MetadataCache struct {
	archives *ArchiveCache

	mu      sync.RWMutex
	entries map[string]Metadata
}

// NewMetadataCache creates a metadata cache backed by the archive cache.
func NewMetadataCache(archives *ArchiveCache) *MetadataCache {
	return &MetadataCache{
		archives: archives,
		entries:  make(map[string]Metadata),
	}
}

// Get returns the archive's metadata, computing it once through an acquired
// handle on first use.
func (m *MetadataCache) Get(ctx context.Context, d Descriptor) (Metadata, error) {
	m.mu.RLock()
	meta, ok := m.entries[d.Name]
	m.mu.RUnlock()
	if ok {
		return meta, nil
	}

	h, err := m.archives.Acquire(ctx, d)
	if err != nil {
		return Metadata{}, err
	}
	defer h.Release()

	meta, err = h.Metadata()
	if err != nil {
		return Metadata{}, OpenFailureError(d.Name, err)
	}

	m.mu.Lock()
	m.entries[d.Name] = meta
	m.mu.Unlock()
	return meta, nil
}

// Contains reports whether metadata for the archive is cached.
func (m *MetadataCache) Contains(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

// Invalidate drops the cached metadata for one archive.
func (m *MetadataCache) Invalidate(name string) {
	m.mu.Lock()
	delete(m.entries, name)
	m.mu.Unlock()
}

// Purge drops all cached metadata.
func (m *MetadataCache) Purge() {
	m.mu.Lock()
	m.entries = make(map[string]Metadata)
	m.mu.Unlock()
}
