package zim

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonesrussell/zim-mcp/internal/logger"
)

// Extraction defaults and caps mirroring the search/extract tool contract.
const (
	defaultExtractResults = 5
	maxExtractResults     = 50
)

// Options configures a Service.
type Options struct {
	// Directory is scanned for archive files.
	Directory string
	// Open provides the archive reader backend.
	Open OpenFunc

	ArchiveCacheSize      int
	SearchCacheSize       int
	MaxSearchResults      int
	SearchTimeout         time.Duration
	MaxConcurrentSearches int

	MaxContentLength int
	RedirectDepth    int

	Logger logger.Logger
}

// Service is the process-scoped context object owning all shared mutable
// state: the registry, the archive/metadata/search caches, the coordinator,
// and the extractor. Construct one at startup, Close it at teardown; no
// component keeps ambient globals.
type Service struct {
	registry    *Registry
	archives    *ArchiveCache
	metadata    *MetadataCache
	results     *ResultCache
	coordinator *Coordinator
	extractor   *Extractor
	log         logger.Logger
}

// NewService wires the component graph and runs the initial discovery scan.
func NewService(opts Options) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	registry := NewRegistry(opts.Directory)
	archives := NewArchiveCache(opts.ArchiveCacheSize, opts.Open, log)
	metadata := NewMetadataCache(archives)
	results := NewResultCache(opts.SearchCacheSize)

	// Evicting a handle drops its memoized metadata with it.
	archives.SetEvictionHook(metadata.Invalidate)

	s := &Service{
		registry: registry,
		archives: archives,
		metadata: metadata,
		results:  results,
		coordinator: NewCoordinator(
			registry, archives, metadata, results,
			opts.MaxSearchResults, opts.SearchTimeout, opts.MaxConcurrentSearches, log,
		),
		extractor: NewExtractor(registry, archives, opts.RedirectDepth, opts.MaxContentLength),
		log:       log,
	}

	changes, err := registry.Discover()
	if err != nil {
		return nil, err
	}
	log.Info("archive discovery complete",
		zap.String("directory", opts.Directory),
		zap.Int("archives", len(registry.Names())),
		zap.Int("added", len(changes.Added)))
	return s, nil
}

// Close tears down all open archive handles.
func (s *Service) Close() {
	s.archives.CloseAll()
}

// Refresh re-scans the archive directory and invalidates every cache entry
// belonging to removed or replaced archives. Cached search results are purged
// wholesale whenever the archive set changes.
func (s *Service) Refresh() (Changes, error) {
	changes, err := s.registry.Discover()
	if err != nil {
		return Changes{}, err
	}
	for _, name := range changes.Removed {
		s.archives.Evict(name)
		s.metadata.Invalidate(name)
	}
	if !changes.Empty() {
		s.results.Purge()
		s.log.Info("archive set changed",
			zap.Strings("added", changes.Added),
			zap.Strings("removed", changes.Removed))
	}
	return changes, nil
}

// ArchiveInfo joins a descriptor with its metadata for listings.
type ArchiveInfo struct {
	Filename         string `json:"filename"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Size             string `json:"size"`
	ArticleCount     int    `json:"article_count"`
	MediaCount       int    `json:"media_count"`
	Language         string `json:"language"`
	Creator          string `json:"creator"`
	Date             string `json:"date"`
	HasFullTextIndex bool   `json:"has_fulltext_index"`
	HasTitleIndex    bool   `json:"has_title_index"`
}

// ArchiveDetails is the full metadata payload for one archive.
type ArchiveDetails struct {
	Filename         string `json:"filename"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Size             int64  `json:"size"`
	SizeFormatted    string `json:"size_formatted"`
	ArticleCount     int    `json:"article_count"`
	MediaCount       int    `json:"media_count"`
	Language         string `json:"language"`
	Creator          string `json:"creator"`
	Date             string `json:"date"`
	UUID             string `json:"uuid"`
	HasFullTextIndex bool   `json:"has_fulltext_index"`
	HasTitleIndex    bool   `json:"has_title_index"`
	// Cached reports whether the metadata came from the cache.
	Cached bool `json:"-"`
}

// ListArchives returns descriptor+metadata for every discovered archive,
// ordered by name. Archives whose metadata cannot be read are listed with
// descriptor fields only.
func (s *Service) ListArchives(ctx context.Context) []ArchiveInfo {
	descriptors := s.registry.List()
	out := make([]ArchiveInfo, 0, len(descriptors))
	for _, d := range descriptors {
		info := ArchiveInfo{
			Filename: d.Name,
			Title:    d.Name,
			Size:     d.SizeHuman,
		}
		meta, err := s.metadata.Get(ctx, d)
		if err != nil {
			s.log.Warn("archive metadata unavailable",
				zap.String("archive", d.Name), zap.Error(err))
			out = append(out, info)
			continue
		}
		if meta.Title != "" {
			info.Title = meta.Title
		}
		info.Description = meta.Description
		info.ArticleCount = meta.ArticleCount
		info.MediaCount = meta.MediaCount
		info.Language = meta.Language
		info.Creator = meta.Creator
		info.Date = meta.Date
		info.HasFullTextIndex = meta.HasFullTextIndex
		info.HasTitleIndex = meta.HasTitleIndex
		out = append(out, info)
	}
	return out
}

// ArchiveMetadata returns the full metadata for one archive by logical name.
func (s *Service) ArchiveMetadata(ctx context.Context, name string) (*ArchiveDetails, error) {
	d, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	cached := s.metadata.Contains(d.Name)
	meta, err := s.metadata.Get(ctx, d)
	if err != nil {
		return nil, err
	}

	title := meta.Title
	if title == "" {
		title = d.Name
	}
	return &ArchiveDetails{
		Filename:         d.Name,
		Title:            title,
		Description:      meta.Description,
		Size:             d.SizeBytes,
		SizeFormatted:    d.SizeHuman,
		ArticleCount:     meta.ArticleCount,
		MediaCount:       meta.MediaCount,
		Language:         meta.Language,
		Creator:          meta.Creator,
		Date:             meta.Date,
		UUID:             meta.UUID,
		HasFullTextIndex: meta.HasFullTextIndex,
		HasTitleIndex:    meta.HasTitleIndex,
		Cached:           cached,
	}, nil
}

// Search runs a federated query across the requested archives.
func (s *Service) Search(ctx context.Context, query string, archives []string, maxResults, startOffset int) (*Page, error) {
	return s.coordinator.Search(ctx, query, archives, maxResults, startOffset)
}

// ReadEntry fetches and converts one entry.
func (s *Service) ReadEntry(ctx context.Context, archive, path string, format Format, maxLength int) (*Content, error) {
	return s.extractor.ReadEntry(ctx, archive, path, format, maxLength)
}

// ExtractedResult is one search hit with its extracted content attached. A
// failed extraction carries an error marker instead of content so one bad
// entry never aborts the batch.
type ExtractedResult struct {
	Archive       string         `json:"zim_file"`
	Path          string         `json:"path"`
	Title         string         `json:"title"`
	Score         float64        `json:"score"`
	Content       string         `json:"content"`
	ContentType   string         `json:"content_type"`
	ContentLength int            `json:"content_length"`
	Preview       string         `json:"preview"`
	IsRedirect    bool           `json:"is_redirect"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// SearchAndExtract composes a federated search with per-hit content
// extraction, preserving hit order.
func (s *Service) SearchAndExtract(ctx context.Context, query string, archives []string, maxResults int, format Format, maxLength int) ([]ExtractedResult, error) {
	if maxResults <= 0 {
		maxResults = defaultExtractResults
	}
	if maxResults > maxExtractResults {
		return nil, InvalidArgumentError("max_results must be between 1 and %d", maxExtractResults)
	}

	page, err := s.coordinator.Search(ctx, query, archives, maxResults, 0)
	if err != nil {
		return nil, err
	}

	out := make([]ExtractedResult, 0, len(page.Hits))
	for _, hit := range page.Hits {
		result := ExtractedResult{
			Archive:    hit.Archive,
			Path:       hit.Path,
			Title:      hit.Title,
			Score:      hit.Score,
			IsRedirect: hit.IsRedirect,
		}
		content, err := s.extractor.ReadEntry(ctx, hit.Archive, hit.Path, format, maxLength)
		if err != nil {
			s.log.Warn("extraction failed for search hit",
				zap.String("archive", hit.Archive),
				zap.String("path", hit.Path),
				zap.Error(err))
			result.Error = err.Error()
		} else {
			result.Content = content.Content
			result.ContentType = content.Format
			result.ContentLength = content.ContentLength
			result.Preview = content.Preview
			result.IsRedirect = content.IsRedirect
			result.Metadata = content.Metadata
		}
		out = append(out, result)
	}
	return out, nil
}
