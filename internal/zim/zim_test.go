package zim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/zim-mcp/internal/logger"
)

// fakeReader is an in-memory Reader fixture. Search results are canned;
// GetEntry serves from a path map; RandomEntry cycles the listing
// deterministically.
type fakeReader struct {
	meta    Metadata
	metaErr error

	entries  map[string]*Entry
	listing  []EntryInfo
	fulltext []Result
	titles   []Result

	fulltextErr error
	titlesErr   error
	// blockOnCtx makes searches hang until the context expires.
	blockOnCtx bool

	mu          sync.Mutex
	closed      bool
	searchCalls int
	randomIdx   int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		meta: Metadata{
			Title:            "Fixture Archive",
			HasFullTextIndex: true,
			HasTitleIndex:    true,
		},
		entries: make(map[string]*Entry),
	}
}

func (r *fakeReader) Metadata() (Metadata, error) {
	if r.metaErr != nil {
		return Metadata{}, r.metaErr
	}
	return r.meta, nil
}

func (r *fakeReader) SearchFullText(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	r.mu.Lock()
	r.searchCalls++
	r.mu.Unlock()
	if r.blockOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.fulltextErr != nil {
		return nil, r.fulltextErr
	}
	return sliceResults(r.fulltext, limit, offset), nil
}

func (r *fakeReader) SearchTitles(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	r.mu.Lock()
	r.searchCalls++
	r.mu.Unlock()
	if r.blockOnCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.titlesErr != nil {
		return nil, r.titlesErr
	}
	return sliceResults(r.titles, limit, offset), nil
}

func (r *fakeReader) GetEntry(path string) (*Entry, error) {
	e, ok := r.entries[path]
	if !ok {
		return nil, NotFoundError("entry %q does not exist in this archive", path)
	}
	return e, nil
}

func (r *fakeReader) WalkEntries(fn func(EntryInfo) bool) error {
	for _, info := range r.listing {
		if !fn(info) {
			return nil
		}
	}
	return nil
}

func (r *fakeReader) RandomEntry() (EntryInfo, error) {
	if len(r.listing) == 0 {
		return EntryInfo{}, errors.New("archive has no entries")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	info := r.listing[r.randomIdx%len(r.listing)]
	r.randomIdx++
	return info, nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) searchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searchCalls
}

func (r *fakeReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func sliceResults(results []Result, limit, offset int) []Result {
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// fakeOpener maps archive filenames to reader fixtures and counts opens.
type fakeOpener struct {
	mu      sync.Mutex
	readers map[string]*fakeReader
	errs    map[string]error
	opens   map[string]int
	// delay stretches the open window so concurrent acquires overlap.
	delay time.Duration
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		readers: make(map[string]*fakeReader),
		errs:    make(map[string]error),
		opens:   make(map[string]int),
	}
}

func (o *fakeOpener) add(name string, r *fakeReader) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.readers[name] = r
}

func (o *fakeOpener) fail(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[name] = err
}

func (o *fakeOpener) open(path string) (Reader, error) {
	name := filepath.Base(path)
	o.mu.Lock()
	o.opens[name]++
	delay := o.delay
	o.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.errs[name]; err != nil {
		return nil, err
	}
	r, ok := o.readers[name]
	if !ok {
		return nil, errors.New("no fixture registered for " + name)
	}
	return r, nil
}

func (o *fakeOpener) openCount(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[name]
}

// touchArchives creates stub archive files so registry discovery sees them.
// Content is irrelevant: opens go through the fake opener.
func touchArchives(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fixture"), 0o644))
	}
}

func newTestService(t *testing.T, dir string, opener *fakeOpener) *Service {
	t.Helper()
	s, err := NewService(Options{
		Directory:             dir,
		Open:                  opener.open,
		ArchiveCacheSize:      4,
		SearchCacheSize:       8,
		MaxSearchResults:      100,
		SearchTimeout:         time.Second,
		MaxConcurrentSearches: 4,
		MaxContentLength:      50000,
		RedirectDepth:         10,
		Logger:                logger.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}
