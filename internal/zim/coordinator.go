package zim

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/zim-mcp/internal/logger"
)

// maxQueryLength rejects degenerate queries before they reach any index.
const maxQueryLength = 1000

// Page is one slice of a merged result set, as returned to callers.
type Page struct {
	Query          string
	Hits           []SearchHit
	TotalAvailable int
	StartOffset    int
	MaxResults     int
	HasMore        bool
	// Failures maps archive name to a short reason for every archive that
	// contributed zero hits due to an error. Never a top-level failure.
	Failures map[string]string
}

// Coordinator fans a query out across archives, merges the per-archive
// ranked hits into one deterministic order, and paginates the result. The
// full merged set is cached so repeated pagination never re-queries archives
// and ordering stays stable across pages.
type Coordinator struct {
	registry *Registry
	archives *ArchiveCache
	metadata *MetadataCache
	results  *ResultCache
	log      logger.Logger

	// maxResults caps both the caller's max_results and the per-archive
	// fetch depth, so one federated query touches a bounded number of hits.
	maxResults    int
	timeout       time.Duration
	maxConcurrent int
}

// NewCoordinator wires a search coordinator over the shared caches.
func NewCoordinator(
	registry *Registry,
	archives *ArchiveCache,
	metadata *MetadataCache,
	results *ResultCache,
	maxResults int,
	timeout time.Duration,
	maxConcurrent int,
	log logger.Logger,
) *Coordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Coordinator{
		registry:      registry,
		archives:      archives,
		metadata:      metadata,
		results:       results,
		maxResults:    maxResults,
		timeout:       timeout,
		maxConcurrent: maxConcurrent,
		log:           log,
	}
}

// Search runs a federated query. Archives defaults to all discovered archives
// when empty. A failure on one archive contributes zero hits and a failure
// note; it never fails the call. Out-of-range offsets yield an empty page.
func (c *Coordinator) Search(ctx context.Context, query string, archives []string, maxResults, startOffset int) (*Page, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, InvalidArgumentError("search query cannot be empty")
	}
	if len(q) > maxQueryLength {
		return nil, InvalidArgumentError("search query too long (max %d characters)", maxQueryLength)
	}
	if maxResults <= 0 || maxResults > c.maxResults {
		return nil, InvalidArgumentError("max_results must be between 1 and %d", c.maxResults)
	}
	if startOffset < 0 {
		return nil, InvalidArgumentError("start_offset cannot be negative")
	}

	names, err := c.targetArchives(archives)
	if err != nil {
		return nil, err
	}

	key := resultCacheKey(strings.ToLower(q), names)
	set := c.results.Get(key)
	if set == nil {
		set, err = c.runQuery(ctx, q, names)
		if err != nil {
			return nil, err
		}
		// A cancelled request may have abandoned per-archive searches;
		// partial results are discarded, not cached.
		if ctx.Err() == nil {
			c.results.Put(key, set)
		}
	}

	return paginate(set, startOffset, maxResults), nil
}

// targetArchives normalizes the requested archive set: explicit names are
// validated against the registry, an empty request means all discovered
// archives. The returned list is sorted and de-duplicated for a stable
// cache key.
func (c *Coordinator) targetArchives(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return c.registry.Names(), nil
	}

	seen := make(map[string]struct{}, len(requested))
	names := make([]string, 0, len(requested))
	for _, name := range requested {
		if _, err := c.registry.Resolve(name); err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// runQuery performs the concurrent fan-out and merge for a cache miss.
func (c *Coordinator) runQuery(ctx context.Context, query string, names []string) (*ResultSet, error) {
	perArchive := make([][]SearchHit, len(names))
	failed := make([]string, len(names))

	// Tasks record failures instead of returning them so one bad archive
	// never cancels its siblings.
	g := &errgroup.Group{}
	g.SetLimit(c.maxConcurrent)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			hits, err := c.searchArchive(actx, name, query)
			if err != nil {
				failed[i] = failureNote(name, err)
				c.log.Warn("archive search failed",
					zap.String("archive", name),
					zap.String("query", query),
					zap.Error(err))
				return nil
			}
			perArchive[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	set := &ResultSet{
		Query:     query,
		Archives:  names,
		CreatedAt: time.Now(),
		Failures:  make(map[string]string),
	}
	for i, hits := range perArchive {
		set.Hits = append(set.Hits, hits...)
		if failed[i] != "" {
			set.Failures[names[i]] = failed[i]
		}
	}
	sortHits(set.Hits)

	c.log.Info("federated search merged",
		zap.String("query", query),
		zap.Int("archives", len(names)),
		zap.Int("hits", len(set.Hits)),
		zap.Int("failures", len(set.Failures)))
	return set, nil
}

// searchArchive queries one archive, preferring the full-text index and
// falling back to the title index.
func (c *Coordinator) searchArchive(ctx context.Context, name, query string) ([]SearchHit, error) {
	d, err := c.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	h, err := c.archives.Acquire(ctx, d)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, TimeoutError(name)
		}
		return nil, err
	}
	defer h.Release()

	meta, err := c.metadata.Get(ctx, d)
	if err != nil {
		return nil, err
	}

	var results []Result
	if meta.HasFullTextIndex {
		results, err = h.SearchFullText(ctx, query, c.maxResults, 0)
		if err != nil && meta.HasTitleIndex {
			results, err = h.SearchTitles(ctx, query, c.maxResults, 0)
		}
	} else {
		results, err = h.SearchTitles(ctx, query, c.maxResults, 0)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, TimeoutError(name)
		}
		return nil, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, SearchHit{
			Archive:    name,
			Path:       r.Path,
			Title:      r.Title,
			Score:      r.Score,
			Preview:    r.Preview,
			IsRedirect: r.IsRedirect,
		})
	}
	return hits, nil
}

// sortHits orders hits by score descending with ties broken by
// (archive, path) ascending. The tie-break makes merged ordering
// deterministic across runs and archives.
func sortHits(hits []SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Archive != b.Archive {
			return a.Archive < b.Archive
		}
		return a.Path < b.Path
	})
}

// paginate slices one page out of an immutable result set.
func paginate(set *ResultSet, offset, max int) *Page {
	total := len(set.Hits)
	page := &Page{
		Query:          set.Query,
		TotalAvailable: total,
		StartOffset:    offset,
		MaxResults:     max,
		Failures:       set.Failures,
	}
	if offset < total {
		end := offset + max
		if end > total {
			end = total
		}
		page.Hits = set.Hits[offset:end]
	}
	page.HasMore = offset+max < total
	return page
}

func failureNote(name string, err error) string {
	switch KindOf(err) {
	case KindTimeout:
		return "search timed out"
	case KindOpenFailure:
		return "archive could not be opened"
	case KindNotFound:
		return "archive disappeared during search"
	default:
		if err != nil {
			return err.Error()
		}
		return "search failed on " + name
	}
}
