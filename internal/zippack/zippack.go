// Package zippack implements the archive Reader capability over plain ZIP
// document bundles. It exists so the server runs end-to-end without cgo
// libzim bindings; a bundle is an ordinary ZIP whose members are entries,
// with optional metadata under _meta/.
//
// Bundle layout:
//
//	_meta/info.yaml   archive metadata (title, description, language, ...)
//	_meta/redirects   alias<TAB>target lines
//	_meta/titles      path<TAB>title overrides
//	everything else   one entry per member, path = member name
//
// Title and full-text search are linear scans with occurrence scoring
// normalized into (0, 1]; ranking quality is whatever the bundle deserves,
// the federated layer only relies on the ordering being deterministic.
package zippack

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/zim-mcp/internal/zim"
)

// maxScanBytes bounds how much of one entry the full-text scan reads.
const maxScanBytes = 4 << 20

// metaPrefix marks members that describe the bundle instead of being entries.
const metaPrefix = "_meta/"

type bundleInfo struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Language    string `yaml:"language"`
	Creator     string `yaml:"creator"`
	Date        string `yaml:"date"`
	UUID        string `yaml:"uuid"`
}

type member struct {
	file  *zip.File
	path  string
	title string
	mime  string
}

// Archive reads one ZIP bundle. Not safe for concurrent use; the archive
// cache serializes access per handle.
type Archive struct {
	rc        *zip.ReadCloser
	info      bundleInfo
	members   []member          // zip listing order
	byPath    map[string]int    // path -> members index
	redirects map[string]string // alias -> target path
	aliases   []string          // redirect aliases in stable order

	closeOnce sync.Once
}

// Open opens the bundle at the given path. The returned Archive satisfies
// the zim.Reader capability.
func Open(filename string) (zim.Reader, error) {
	rc, err := zip.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}

	a := &Archive{
		rc:        rc,
		byPath:    make(map[string]int),
		redirects: make(map[string]string),
	}
	titles := make(map[string]string)

	for _, f := range rc.File {
		name := path.Clean(f.Name)
		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			continue
		}
		if strings.HasPrefix(name, metaPrefix) {
			if err := a.loadMeta(name, f, titles); err != nil {
				rc.Close()
				return nil, fmt.Errorf("bundle metadata %s: %w", name, err)
			}
			continue
		}
		a.byPath[name] = len(a.members)
		a.members = append(a.members, member{
			file: f,
			path: name,
			mime: mimeFor(name),
		})
	}

	for i := range a.members {
		if t, ok := titles[a.members[i].path]; ok {
			a.members[i].title = t
		} else {
			a.members[i].title = defaultTitle(a.members[i].path)
		}
	}

	for alias := range a.redirects {
		a.aliases = append(a.aliases, alias)
	}
	sort.Strings(a.aliases)

	return a, nil
}

func (a *Archive) loadMeta(name string, f *zip.File, titles map[string]string) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	switch name {
	case metaPrefix + "info.yaml":
		data, err := io.ReadAll(io.LimitReader(r, maxScanBytes))
		if err != nil {
			return err
		}
		return yaml.Unmarshal(data, &a.info)

	case metaPrefix + "redirects":
		return eachTabLine(r, func(from, to string) {
			a.redirects[from] = to
		})

	case metaPrefix + "titles":
		return eachTabLine(r, func(p, title string) {
			titles[p] = title
		})
	}
	// unrecognized _meta members are ignored
	return nil
}

func eachTabLine(r io.Reader, fn func(a, b string)) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		from, to, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		fn(strings.TrimSpace(from), strings.TrimSpace(to))
	}
	return scanner.Err()
}

// Metadata implements zim.Reader.
func (a *Archive) Metadata() (zim.Metadata, error) {
	articles, media := 0, 0
	for _, m := range a.members {
		if isTextMime(m.mime) {
			articles++
		} else if isMediaMime(m.mime) {
			media++
		}
	}
	return zim.Metadata{
		Title:        a.info.Title,
		Description:  a.info.Description,
		Language:     a.info.Language,
		Creator:      a.info.Creator,
		Date:         a.info.Date,
		UUID:         a.info.UUID,
		ArticleCount: articles,
		MediaCount:   media,
		// Linear scans serve both index roles for bundles.
		HasFullTextIndex: true,
		HasTitleIndex:    true,
	}, nil
}

// GetEntry implements zim.Reader.
func (a *Archive) GetEntry(p string) (*zim.Entry, error) {
	p = path.Clean(p)

	if target, ok := a.redirects[p]; ok {
		return &zim.Entry{
			Path:       p,
			Title:      defaultTitle(p),
			RedirectTo: target,
		}, nil
	}

	idx, ok := a.byPath[p]
	if !ok {
		return nil, zim.NotFoundError("entry %q does not exist in this archive", p)
	}
	m := a.members[idx]

	r, err := m.file.Open()
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", p, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", p, err)
	}

	return &zim.Entry{
		Path:     m.path,
		Title:    m.title,
		Data:     data,
		MimeType: m.mime,
	}, nil
}

// WalkEntries implements zim.Reader: members in bundle order, then redirect
// aliases.
func (a *Archive) WalkEntries(fn func(zim.EntryInfo) bool) error {
	for _, m := range a.members {
		if !fn(zim.EntryInfo{Path: m.path, Title: m.title}) {
			return nil
		}
	}
	for _, alias := range a.aliases {
		if !fn(zim.EntryInfo{Path: alias, Title: defaultTitle(alias), IsRedirect: true}) {
			return nil
		}
	}
	return nil
}

// RandomEntry implements zim.Reader.
func (a *Archive) RandomEntry() (zim.EntryInfo, error) {
	if len(a.members) == 0 {
		return zim.EntryInfo{}, errors.New("bundle has no entries")
	}
	m := a.members[rand.Intn(len(a.members))]
	return zim.EntryInfo{Path: m.path, Title: m.title}, nil
}

// SearchTitles implements zim.Reader with a linear title scan.
func (a *Archive) SearchTitles(ctx context.Context, query string, limit, offset int) ([]zim.Result, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var results []zim.Result
	for _, m := range a.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := titleScore(m.title, query, terms)
		if score <= 0 {
			continue
		}
		results = append(results, zim.Result{
			Path:  m.path,
			Title: m.title,
			Score: score,
		})
	}
	return rankAndSlice(results, limit, offset), nil
}

// SearchFullText implements zim.Reader by scanning text entries and scoring
// term occurrences.
func (a *Archive) SearchFullText(ctx context.Context, query string, limit, offset int) ([]zim.Result, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var results []zim.Result
	for _, m := range a.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !isTextMime(m.mime) {
			continue
		}

		body, err := a.readTextBody(m)
		if err != nil {
			continue
		}
		lower := strings.ToLower(body)

		occurrences := 0
		matchedTerms := 0
		for _, term := range terms {
			n := strings.Count(lower, term)
			if n > 0 {
				matchedTerms++
			}
			occurrences += n
		}
		if matchedTerms == 0 {
			continue
		}

		// occurrence count saturates toward 1.0; full term coverage and a
		// title match both pull the score up
		score := float64(occurrences) / float64(occurrences+4)
		score *= float64(matchedTerms) / float64(len(terms))
		if titleScore(m.title, query, terms) > 0 {
			score = score*0.7 + 0.3
		}
		if score > 1.0 {
			score = 1.0
		}

		results = append(results, zim.Result{
			Path:    m.path,
			Title:   m.title,
			Score:   score,
			Preview: previewAround(body, lower, terms[0]),
		})
	}
	return rankAndSlice(results, limit, offset), nil
}

// Close implements zim.Reader.
func (a *Archive) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.rc.Close()
	})
	return err
}

func (a *Archive) readTextBody(m member) (string, error) {
	r, err := m.file.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxScanBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func rankAndSlice(results []zim.Result, limit, offset int) []zim.Result {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if offset >= len(results) {
		return nil
	}
	results = results[offset:]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

func titleScore(title, query string, terms []string) float64 {
	lower := strings.ToLower(title)
	if lower == strings.ToLower(strings.TrimSpace(query)) {
		return 1.0
	}
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return 0.8 * float64(matched) / float64(len(terms))
}

// previewAround extracts a window of text around the first occurrence of the
// term, with markup roughly stripped.
func previewAround(body, lowerBody, term string) string {
	const window = 120

	idx := strings.Index(lowerBody, term)
	if idx < 0 {
		idx = 0
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := idx + window
	if end > len(body) {
		end = len(body)
	}

	snippet := body[start:end]
	// crude tag removal is fine for a preview
	for {
		open := strings.Index(snippet, "<")
		if open < 0 {
			break
		}
		rest := strings.Index(snippet[open:], ">")
		if rest < 0 {
			snippet = snippet[:open]
			break
		}
		snippet = snippet[:open] + " " + snippet[open+rest+1:]
	}
	return strings.Join(strings.Fields(snippet), " ")
}

func defaultTitle(p string) string {
	base := path.Base(p)
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	return strings.ReplaceAll(base, "_", " ")
}

func mimeFor(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return "text/html"
	case ".txt", ".md":
		return "text/plain"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".mp4", ".webm":
		return "video/mp4"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func isTextMime(mime string) bool {
	return strings.HasPrefix(mime, "text/html") || strings.HasPrefix(mime, "text/plain")
}

func isMediaMime(mime string) bool {
	return strings.HasPrefix(mime, "image/") ||
		strings.HasPrefix(mime, "audio/") ||
		strings.HasPrefix(mime, "video/")
}
