package zim

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Format selects how entry bytes are rendered.
type Format string

const (
	// FormatText strips markup to plain text (lossy, best-effort).
	FormatText Format = "text"
	// FormatHTML returns the stored markup unmodified.
	FormatHTML Format = "html"
	// FormatRaw passes bytes through unchanged with the declared mime type.
	FormatRaw Format = "raw"
)

// ParseFormat validates a caller-supplied format string. Unknown values are
// rejected rather than silently defaulted.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatHTML, FormatRaw:
		return Format(s), nil
	case "":
		return FormatText, nil
	default:
		return "", InvalidArgumentError("unknown format %q (expected text, html, or raw)", s)
	}
}

// Content is one extracted entry, rendered in the requested format.
type Content struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Format   string `json:"format"`
	// ContentLength is the stored (pre-conversion, pre-truncation) byte length.
	ContentLength int    `json:"content_length"`
	Preview       string `json:"preview"`
	IsRedirect    bool   `json:"is_redirect"`
	// RedirectedFrom is the requested path when the entry was reached by
	// following a redirect chain.
	RedirectedFrom string         `json:"redirected_from,omitempty"`
	Truncated      bool           `json:"truncated"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

const previewLength = 200

// Extractor resolves entries (following redirects up to a fixed bound) and
// converts raw bytes into the requested output format.
type Extractor struct {
	registry *Registry
	archives *ArchiveCache

	redirectDepth    int
	defaultMaxLength int
}

// NewExtractor creates an extractor. redirectDepth bounds redirect chains;
// maxLength is the default truncation bound applied when a call passes none.
func NewExtractor(registry *Registry, archives *ArchiveCache, redirectDepth, maxLength int) *Extractor {
	if redirectDepth <= 0 {
		redirectDepth = 10
	}
	return &Extractor{
		registry:         registry,
		archives:         archives,
		redirectDepth:    redirectDepth,
		defaultMaxLength: maxLength,
	}
}

// ReadEntry fetches and converts one entry. maxLength <= 0 applies the
// configured default bound; truncation always cuts at a rune boundary and is
// flagged on the result.
func (e *Extractor) ReadEntry(ctx context.Context, archive, path string, format Format, maxLength int) (*Content, error) {
	if path == "" {
		return nil, InvalidArgumentError("entry path cannot be empty")
	}
	if maxLength <= 0 {
		maxLength = e.defaultMaxLength
	}

	d, err := e.registry.Resolve(archive)
	if err != nil {
		return nil, err
	}

	h, err := e.archives.Acquire(ctx, d)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	entry, redirected, err := e.resolveEntry(h, path)
	if err != nil {
		return nil, err
	}

	decoded := decodeText(entry.Data)

	var rendered string
	switch format {
	case FormatText:
		rendered = toPlainText(decoded, entry.MimeType)
	case FormatHTML, FormatRaw:
		rendered = decoded
	default:
		return nil, InvalidArgumentError("unknown format %q (expected text, html, or raw)", string(format))
	}

	content := &Content{
		Path:          entry.Path,
		Title:         entry.Title,
		MimeType:      entry.MimeType,
		Format:        string(format),
		ContentLength: len(entry.Data),
		Preview:       previewOf(decoded),
		IsRedirect:    redirected,
	}
	if redirected {
		content.RedirectedFrom = path
	}
	if isHTMLMime(entry.MimeType) {
		content.Metadata = htmlMetadata(decoded)
	}

	content.Content, content.Truncated = truncateText(rendered, maxLength)
	return content, nil
}

// resolveEntry follows redirect entries iteratively. A chain of exactly
// redirectDepth hops succeeds; one more fails with a RedirectLoop error.
func (e *Extractor) resolveEntry(h *Handle, path string) (*Entry, bool, error) {
	current := path
	for hop := 0; ; hop++ {
		entry, err := h.GetEntry(current)
		if err != nil {
			return nil, false, err
		}
		if entry.RedirectTo == "" {
			return entry, hop > 0, nil
		}
		if hop+1 > e.redirectDepth {
			return nil, false, RedirectLoopError(path, e.redirectDepth)
		}
		current = entry.RedirectTo
	}
}

// decodeText interprets entry bytes as UTF-8, degrading to a Latin-1 read for
// legacy archives rather than failing.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// stripTags is the lossy fallback conversion: drop anything tag-shaped and
// collapse whitespace. Never fails on malformed markup.
func stripTags(markup string) string {
	text := tagPattern.ReplaceAllString(markup, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// toPlainText converts markup to readable text. HTML goes through
// readability extraction first; anything it chokes on degrades to tag
// stripping, and non-HTML content is returned as decoded text.
func toPlainText(decoded, mimeType string) string {
	if !isHTMLMime(mimeType) && !looksLikeMarkup(decoded) {
		return strings.TrimSpace(decoded)
	}

	article, err := readability.FromReader(strings.NewReader(decoded), &url.URL{Scheme: "zim", Host: "archive"})
	if err == nil {
		if text := strings.TrimSpace(whitespacePattern.ReplaceAllString(article.TextContent, " ")); text != "" {
			return text
		}
	}
	return stripTags(decoded)
}

func isHTMLMime(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "html")
}

func looksLikeMarkup(s string) bool {
	return strings.Contains(s, "<") && strings.Contains(s, ">")
}

// previewOf produces a short plain-text preview regardless of source format.
func previewOf(decoded string) string {
	text := decoded
	if looksLikeMarkup(text) {
		text = stripTags(text)
	} else {
		text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	}
	preview, _ := truncateText(text, previewLength)
	return preview
}

// truncateText cuts at a rune boundary and appends an ellipsis marker when
// content was dropped.
func truncateText(s string, maxLength int) (string, bool) {
	const suffix = "..."
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s, false
	}
	cut := maxLength - len(suffix)
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + suffix, true
}

// htmlMetadata pulls document metadata out of HTML content: title, meta
// description, and link/image counts.
func htmlMetadata(markup string) map[string]any {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	meta := make(map[string]any)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["html_title"] = title
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && desc != "" {
		meta["description"] = strings.TrimSpace(desc)
	}
	if n := doc.Find("img").Length(); n > 0 {
		meta["image_count"] = n
	}
	if n := doc.Find("a[href]").Length(); n > 0 {
		meta["link_count"] = n
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
