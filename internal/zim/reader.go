// Package zim implements the multi-archive search and cache core of the
// ZIM MCP server: archive discovery, bounded handle caching, federated
// search with result caching, and content extraction.
//
// The on-disk container format is an external collaborator consumed through
// the Reader capability; backends register by providing an OpenFunc.
package zim

import "context"

// Metadata describes an opened archive.
type Metadata struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	ArticleCount     int    `json:"article_count"`
	MediaCount       int    `json:"media_count"`
	Language         string `json:"language"`
	Creator          string `json:"creator"`
	Date             string `json:"date"`
	UUID             string `json:"uuid"`
	HasFullTextIndex bool   `json:"has_fulltext_index"`
	HasTitleIndex    bool   `json:"has_title_index"`
}

// EntryInfo identifies one addressable entry inside an archive.
type EntryInfo struct {
	Path       string `json:"path"`
	Title      string `json:"title"`
	IsRedirect bool   `json:"is_redirect"`
}

// Entry is the stored content of one entry. RedirectTo is non-empty when the
// entry aliases another path instead of holding content.
type Entry struct {
	Path       string
	Title      string
	Data       []byte
	MimeType   string
	RedirectTo string
}

// Result is one ranked hit from an archive's own index. Score is in (0.0, 1.0].
type Result struct {
	Path       string
	Title      string
	Score      float64
	Preview    string
	IsRedirect bool
}

// Reader is the per-archive capability provided by a backend. Implementations
// are not required to be safe for concurrent use; the archive cache serializes
// access per handle.
type Reader interface {
	// Metadata returns the archive's descriptive metadata.
	Metadata() (Metadata, error)

	// SearchFullText queries the archive's full-text index.
	SearchFullText(ctx context.Context, query string, limit, offset int) ([]Result, error)

	// SearchTitles queries the archive's title index.
	SearchTitles(ctx context.Context, query string, limit, offset int) ([]Result, error)

	// GetEntry fetches one entry by path. Returns a NotFound error for
	// unknown paths. Redirect entries carry RedirectTo and no data.
	GetEntry(path string) (*Entry, error)

	// WalkEntries visits entries in listing order until fn returns false
	// or the listing is exhausted.
	WalkEntries(fn func(EntryInfo) bool) error

	// RandomEntry returns one randomly chosen entry.
	RandomEntry() (EntryInfo, error)

	// Close releases the underlying file resources.
	Close() error
}

// OpenFunc opens the archive at an absolute path. Backends supply this to the
// Service; open failures must be returned, not retried internally.
type OpenFunc func(path string) (Reader, error)
