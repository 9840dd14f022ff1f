package zippack

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/zim-mcp/internal/zim"
)

func writeBundle(t *testing.T, filename string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), filename)
	f, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func physicsBundle(t *testing.T) string {
	return writeBundle(t, "physics.zip", map[string]string{
		"_meta/info.yaml": "title: Physics Library\n" +
			"description: Selected physics articles\n" +
			"language: eng\n" +
			"creator: test\n" +
			"date: \"2025-01-15\"\n" +
			"uuid: 3fbd0a4e-9985-4894-a33b-62d376dcbbb8\n",
		"_meta/redirects": "# alias -> target\nA/Einstein.html\tA/Albert_Einstein.html\n",
		"_meta/titles":    "A/Albert_Einstein.html\tAlbert Einstein\n",
		"A/Albert_Einstein.html": "<html><head><title>Albert Einstein</title></head>" +
			"<body>Einstein developed the theory of relativity. Einstein won the Nobel prize.</body></html>",
		"A/Relativity.html": "<html><body>Relativity is a theory of spacetime. " +
			"Relativity changed physics.</body></html>",
		"I/photo.png": "not-really-a-png",
	})
}

func openBundle(t *testing.T, path string) zim.Reader {
	t.Helper()
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestOpenRejectsNonZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestMetadata(t *testing.T) {
	r := openBundle(t, physicsBundle(t))

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Physics Library", meta.Title)
	assert.Equal(t, "Selected physics articles", meta.Description)
	assert.Equal(t, "eng", meta.Language)
	assert.Equal(t, "test", meta.Creator)
	assert.Equal(t, "2025-01-15", meta.Date)
	assert.Equal(t, "3fbd0a4e-9985-4894-a33b-62d376dcbbb8", meta.UUID)
	assert.Equal(t, 2, meta.ArticleCount)
	assert.Equal(t, 1, meta.MediaCount)
	assert.True(t, meta.HasFullTextIndex)
	assert.True(t, meta.HasTitleIndex)
}

func TestGetEntry(t *testing.T) {
	r := openBundle(t, physicsBundle(t))

	entry, err := r.GetEntry("A/Albert_Einstein.html")
	require.NoError(t, err)
	assert.Equal(t, "A/Albert_Einstein.html", entry.Path)
	assert.Equal(t, "Albert Einstein", entry.Title)
	assert.Equal(t, "text/html", entry.MimeType)
	assert.Contains(t, string(entry.Data), "Nobel prize")
	assert.Empty(t, entry.RedirectTo)

	// title falls back to the cleaned-up filename without an override
	entry, err = r.GetEntry("A/Relativity.html")
	require.NoError(t, err)
	assert.Equal(t, "Relativity", entry.Title)

	_, err = r.GetEntry("A/Missing.html")
	assert.Equal(t, zim.KindNotFound, zim.KindOf(err))
}

func TestGetEntryRedirect(t *testing.T) {
	r := openBundle(t, physicsBundle(t))

	entry, err := r.GetEntry("A/Einstein.html")
	require.NoError(t, err)
	assert.Equal(t, "A/Albert_Einstein.html", entry.RedirectTo)
	assert.Empty(t, entry.Data)
}

func TestWalkEntries(t *testing.T) {
	r := openBundle(t, physicsBundle(t))

	var paths []string
	var redirects []string
	err := r.WalkEntries(func(info zim.EntryInfo) bool {
		paths = append(paths, info.Path)
		if info.IsRedirect {
			redirects = append(redirects, info.Path)
		}
		return true
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"A/Albert_Einstein.html",
		"A/Relativity.html",
		"I/photo.png",
		"A/Einstein.html",
	}, paths)
	assert.Equal(t, []string{"A/Einstein.html"}, redirects)
}

func TestWalkEntriesStopsEarly(t *testing.T) {
	r := openBundle(t, physicsBundle(t))

	var count int
	err := r.WalkEntries(func(zim.EntryInfo) bool {
		count++
		return count < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSearchTitles(t *testing.T) {
	r := openBundle(t, physicsBundle(t))
	ctx := context.Background()

	results, err := r.SearchTitles(ctx, "einstein", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A/Albert_Einstein.html", results[0].Path)
	assert.Greater(t, results[0].Score, 0.0)
	assert.LessOrEqual(t, results[0].Score, 1.0)

	// an exact title match outranks a partial one
	exact, err := r.SearchTitles(ctx, "Albert Einstein", 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, exact)
	assert.Equal(t, 1.0, exact[0].Score)

	none, err := r.SearchTitles(ctx, "chemistry", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchFullText(t *testing.T) {
	r := openBundle(t, physicsBundle(t))
	ctx := context.Background()

	results, err := r.SearchFullText(ctx, "relativity", 10, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// title match plus more occurrences ranks the dedicated article first
	assert.Equal(t, "A/Relativity.html", results[0].Path)
	assert.Equal(t, "A/Albert_Einstein.html", results[1].Path)
	assert.Greater(t, results[0].Score, results[1].Score)
	for _, res := range results {
		assert.Greater(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
		assert.NotEmpty(t, res.Preview)
		assert.NotContains(t, res.Preview, "<")
	}

	// limit and offset page through the ranked scan
	top, err := r.SearchFullText(ctx, "relativity", 1, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "A/Relativity.html", top[0].Path)

	rest, err := r.SearchFullText(ctx, "relativity", 10, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "A/Albert_Einstein.html", rest[0].Path)
}

func TestSearchFullTextSkipsMedia(t *testing.T) {
	r := openBundle(t, physicsBundle(t))

	results, err := r.SearchFullText(context.Background(), "png", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchCancelledContext(t *testing.T) {
	r := openBundle(t, physicsBundle(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.SearchFullText(ctx, "relativity", 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = r.SearchTitles(ctx, "relativity", 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandomEntry(t *testing.T) {
	r := openBundle(t, physicsBundle(t))

	info, err := r.RandomEntry()
	require.NoError(t, err)
	assert.NotEmpty(t, info.Path)
	assert.False(t, strings.HasPrefix(info.Path, "_meta/"))
}

func TestRandomEntryEmptyBundle(t *testing.T) {
	path := writeBundle(t, "empty.zip", map[string]string{
		"_meta/info.yaml": "title: Empty\n",
	})
	r := openBundle(t, path)

	_, err := r.RandomEntry()
	assert.Error(t, err)
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"albert", "einstein"}, queryTerms("  Albert   EINSTEIN "))
	assert.Empty(t, queryTerms("   "))
}

func TestDefaultTitle(t *testing.T) {
	assert.Equal(t, "Albert Einstein", defaultTitle("A/Albert_Einstein.html"))
	assert.Equal(t, "notes", defaultTitle("notes.txt"))
}
