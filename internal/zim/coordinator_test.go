package zim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/zim-mcp/internal/logger"
)

func newTestCoordinator(t *testing.T, dir string, opener *fakeOpener, timeout time.Duration) *Coordinator {
	t.Helper()
	registry := NewRegistry(dir)
	_, err := registry.Discover()
	require.NoError(t, err)

	archives := NewArchiveCache(4, opener.open, logger.NewNop())
	t.Cleanup(archives.CloseAll)
	metadata := NewMetadataCache(archives)
	archives.SetEvictionHook(metadata.Invalidate)
	results := NewResultCache(8)

	return NewCoordinator(registry, archives, metadata, results, 100, timeout, 4, logger.NewNop())
}

func TestSearchValidation(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim")
	opener := newFakeOpener()
	opener.add("a.zim", newFakeReader())
	c := newTestCoordinator(t, dir, opener, time.Second)
	ctx := context.Background()

	cases := []struct {
		name        string
		query       string
		archives    []string
		maxResults  int
		startOffset int
	}{
		{"empty query", "", nil, 10, 0},
		{"whitespace query", "   ", nil, 10, 0},
		{"query too long", strings.Repeat("q", maxQueryLength+1), nil, 10, 0},
		{"zero max results", "einstein", nil, 0, 0},
		{"excessive max results", "einstein", nil, 101, 0},
		{"negative offset", "einstein", nil, 10, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Search(ctx, tc.query, tc.archives, tc.maxResults, tc.startOffset)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
		})
	}
}

func TestSearchUnknownArchive(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim")
	opener := newFakeOpener()
	opener.add("a.zim", newFakeReader())
	c := newTestCoordinator(t, dir, opener, time.Second)

	_, err := c.Search(context.Background(), "einstein", []string{"missing.zim"}, 10, 0)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSearchEmptyCorpus(t *testing.T) {
	c := newTestCoordinator(t, t.TempDir(), newFakeOpener(), time.Second)

	page, err := c.Search(context.Background(), "anything", nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Hits)
	assert.Equal(t, 0, page.TotalAvailable)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Failures)
}

func TestSearchMergeOrdering(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim", "b.zim")
	opener := newFakeOpener()

	ra := newFakeReader()
	ra.fulltext = []Result{
		{Path: "A/zebra", Title: "Zebra", Score: 0.9},
		{Path: "A/xylophone", Title: "Xylophone", Score: 0.5},
	}
	rb := newFakeReader()
	rb.fulltext = []Result{
		{Path: "B/yak", Title: "Yak", Score: 0.9},
		{Path: "B/ant", Title: "Ant", Score: 0.5},
	}
	opener.add("a.zim", ra)
	opener.add("b.zim", rb)
	c := newTestCoordinator(t, dir, opener, time.Second)

	page, err := c.Search(context.Background(), "animals", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Hits, 4)

	// score descending; ties break by (archive, path) ascending
	assert.Equal(t, "A/zebra", page.Hits[0].Path)
	assert.Equal(t, "a.zim", page.Hits[0].Archive)
	assert.Equal(t, "B/yak", page.Hits[1].Path)
	assert.Equal(t, "A/xylophone", page.Hits[2].Path)
	assert.Equal(t, "B/ant", page.Hits[3].Path)
}

func TestSearchPagination(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim", "b.zim")
	opener := newFakeOpener()

	ra := newFakeReader()
	ra.fulltext = []Result{{Path: "A/Einstein", Title: "Albert Einstein", Score: 0.9}}
	rb := newFakeReader()
	rb.fulltext = []Result{{Path: "A/Relativity", Title: "Relativity", Score: 0.85}}
	opener.add("a.zim", ra)
	opener.add("b.zim", rb)
	c := newTestCoordinator(t, dir, opener, time.Second)
	ctx := context.Background()

	first, err := c.Search(ctx, "Einstein", nil, 1, 0)
	require.NoError(t, err)
	require.Len(t, first.Hits, 1)
	assert.Equal(t, "A/Einstein", first.Hits[0].Path)
	assert.Equal(t, 2, first.TotalAvailable)
	assert.True(t, first.HasMore)

	second, err := c.Search(ctx, "Einstein", nil, 1, 1)
	require.NoError(t, err)
	require.Len(t, second.Hits, 1)
	assert.Equal(t, "A/Relativity", second.Hits[0].Path)
	assert.False(t, second.HasMore)

	// paging through in slices matches one big page
	all, err := c.Search(ctx, "Einstein", nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, all.Hits, append(append([]SearchHit{}, first.Hits...), second.Hits...))

	// past the end: empty page, never an error
	past, err := c.Search(ctx, "Einstein", nil, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, past.Hits)
	assert.False(t, past.HasMore)
	assert.Equal(t, 2, past.TotalAvailable)
}

func TestSearchPartialFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "good.zim", "broken.zim")
	opener := newFakeOpener()

	rg := newFakeReader()
	rg.fulltext = []Result{{Path: "A/Hit", Title: "Hit", Score: 0.7}}
	opener.add("good.zim", rg)
	opener.fail("broken.zim", errors.New("corrupt header"))
	c := newTestCoordinator(t, dir, opener, time.Second)

	page, err := c.Search(context.Background(), "query", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, "good.zim", page.Hits[0].Archive)
	assert.Equal(t, "archive could not be opened", page.Failures["broken.zim"])
}

func TestSearchResultCaching(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim")
	opener := newFakeOpener()
	ra := newFakeReader()
	ra.fulltext = []Result{{Path: "A/Hit", Title: "Hit", Score: 0.7}}
	opener.add("a.zim", ra)
	c := newTestCoordinator(t, dir, opener, time.Second)
	ctx := context.Background()

	_, err := c.Search(ctx, "Einstein", nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ra.searchCount())

	// repeat pagination and case changes hit the cached merged set
	_, err = c.Search(ctx, "Einstein", nil, 5, 0)
	require.NoError(t, err)
	_, err = c.Search(ctx, "einstein", nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ra.searchCount())

	// a different archive subset is a different cache entry
	_, err = c.Search(ctx, "Einstein", []string{"a.zim"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, ra.searchCount(), "all-archives and explicit full set share the key")
}

func TestSearchTitleIndexFallback(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim")
	opener := newFakeOpener()

	ra := newFakeReader()
	ra.meta.HasFullTextIndex = false
	ra.titles = []Result{{Path: "A/Title", Title: "Title Match", Score: 0.8}}
	opener.add("a.zim", ra)
	c := newTestCoordinator(t, dir, opener, time.Second)

	page, err := c.Search(context.Background(), "title", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, "A/Title", page.Hits[0].Path)
}

func TestSearchFullTextErrorFallsBackToTitles(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim")
	opener := newFakeOpener()

	ra := newFakeReader()
	ra.fulltextErr = errors.New("index unavailable")
	ra.titles = []Result{{Path: "A/Title", Title: "Title Match", Score: 0.8}}
	opener.add("a.zim", ra)
	c := newTestCoordinator(t, dir, opener, time.Second)

	page, err := c.Search(context.Background(), "title", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Empty(t, page.Failures)
}

func TestSearchTimeoutRecordedAsFailure(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "slow.zim", "fast.zim")
	opener := newFakeOpener()

	slow := newFakeReader()
	slow.blockOnCtx = true
	fast := newFakeReader()
	fast.fulltext = []Result{{Path: "A/Hit", Title: "Hit", Score: 0.7}}
	opener.add("slow.zim", slow)
	opener.add("fast.zim", fast)
	c := newTestCoordinator(t, dir, opener, 30*time.Millisecond)

	page, err := c.Search(context.Background(), "query", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Equal(t, "fast.zim", page.Hits[0].Archive)
	assert.Equal(t, "search timed out", page.Failures["slow.zim"])
}

func TestTargetArchivesDeduplicates(t *testing.T) {
	dir := t.TempDir()
	touchArchives(t, dir, "a.zim", "b.zim")
	opener := newFakeOpener()
	opener.add("a.zim", newFakeReader())
	opener.add("b.zim", newFakeReader())
	c := newTestCoordinator(t, dir, opener, time.Second)

	names, err := c.targetArchives([]string{"b.zim", "a.zim", "b.zim"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.zim", "b.zim"}, names)

	all, err := c.targetArchives(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.zim", "b.zim"}, all)
}
