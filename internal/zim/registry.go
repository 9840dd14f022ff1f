package zim

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Descriptor identifies one discovered archive file. Immutable once created;
// a re-scan replaces the descriptor when the file disappears or changes size.
type Descriptor struct {
	// Name is the stable logical name: the filename inside the archive directory.
	Name string `json:"filename"`
	// Path is the absolute file path.
	Path string `json:"-"`
	// SizeBytes is the file size at discovery time.
	SizeBytes int64 `json:"size"`
	// SizeHuman is SizeBytes formatted for display (e.g. "1.2 GB").
	SizeHuman string `json:"size_formatted"`
	// DiscoveredAt is when this descriptor was created.
	DiscoveredAt time.Time `json:"-"`
}

// Changes reports the difference between two consecutive discovery scans.
type Changes struct {
	Added   []string
	Removed []string
}

// Empty reports whether the scan found no additions or removals.
func (c Changes) Empty() bool { return len(c.Added) == 0 && len(c.Removed) == 0 }

// archiveExtensions are the filename suffixes recognized as archives.
var archiveExtensions = []string{".zim", ".zimpack", ".zip"}

// Registry tracks the archive files present in the configured directory.
type Registry struct {
	dir string

	mu    sync.RWMutex
	files map[string]Descriptor
}

// NewRegistry creates a registry over the given directory. The directory does
// not need to exist yet; Discover treats a missing directory as empty.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:   dir,
		files: make(map[string]Descriptor),
	}
}

// Directory returns the scanned directory.
func (r *Registry) Directory() string { return r.dir }

// Discover re-scans the directory and replaces the tracked set. It returns
// the diff against the previous scan so callers can invalidate caches for
// removed archives.
func (r *Registry) Discover() (Changes, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return Changes{}, fmt.Errorf("scan archive directory %s: %w", r.dir, err)
		}
	}

	now := time.Now()
	next := make(map[string]Descriptor, len(entries))
	for _, ent := range entries {
		if ent.IsDir() || !recognizedArchive(ent.Name()) {
			continue
		}
		info, err := ent.Info()
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(r.dir, ent.Name()))
		if err != nil {
			continue
		}
		next[ent.Name()] = Descriptor{
			Name:         ent.Name(),
			Path:         abs,
			SizeBytes:    info.Size(),
			SizeHuman:    humanize.Bytes(uint64(info.Size())),
			DiscoveredAt: now,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var ch Changes
	for name := range next {
		if prev, ok := r.files[name]; !ok {
			ch.Added = append(ch.Added, name)
		} else {
			// Same name but a different file counts as remove+add so
			// stale handles and metadata get invalidated.
			if prev.SizeBytes != next[name].SizeBytes {
				ch.Removed = append(ch.Removed, name)
				ch.Added = append(ch.Added, name)
			} else {
				// keep the original discovery timestamp
				next[name] = prev
			}
		}
	}
	for name := range r.files {
		if _, ok := next[name]; !ok {
			ch.Removed = append(ch.Removed, name)
		}
	}
	sort.Strings(ch.Added)
	sort.Strings(ch.Removed)

	r.files = next
	return ch, nil
}

// List returns the tracked descriptors ordered by logical name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.files))
	for _, d := range r.files {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the tracked logical names ordered ascending.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.files))
	for name := range r.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Resolve looks up a descriptor by logical name. Names containing path
// separators or traversal elements are rejected outright so a caller can
// never address files outside the archive directory.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return Descriptor{}, InvalidArgumentError("invalid archive name %q", name)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.files[name]
	if !ok {
		return Descriptor{}, NotFoundError("archive %q is not in the configured directory", name)
	}
	return d, nil
}

func recognizedArchive(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
