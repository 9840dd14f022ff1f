package mcp

import (
	"context"
	"encoding/json"

	"github.com/jonesrussell/zim-mcp/internal/zim"
)

// defaultSearchResults is the max_results applied when a search call omits it.
const defaultSearchResults = 20

func (s *Server) handleListZimFiles(ctx context.Context, id any) *Response {
	files := s.service.ListArchives(ctx)

	return s.successResponse(id, map[string]any{
		"status": "success",
		"count":  len(files),
		"files":  files,
	})
}

func (s *Server) handleGetZimMetadata(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args struct {
		ZimFile string `json:"zim_file"`
	}

	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.ZimFile == "" {
		return s.errorResponse(id, InvalidParams, "zim_file is required")
	}

	details, err := s.service.ArchiveMetadata(ctx, args.ZimFile)
	if err != nil {
		return s.toolError(id, err)
	}

	return s.successResponse(id, map[string]any{
		"status":   "success",
		"metadata": details,
		"cache_info": map[string]any{
			"is_cached": details.Cached,
		},
	})
}

func (s *Server) handleSearchZimFiles(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args struct {
		Query       string   `json:"query"`
		ZimFiles    []string `json:"zim_files"`
		MaxResults  int      `json:"max_results"`
		StartOffset int      `json:"start_offset"`
	}

	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.Query == "" {
		return s.errorResponse(id, InvalidParams, "query is required")
	}
	if args.MaxResults == 0 {
		args.MaxResults = defaultSearchResults
	}

	page, err := s.service.Search(ctx, args.Query, args.ZimFiles, args.MaxResults, args.StartOffset)
	if err != nil {
		return s.toolError(id, err)
	}

	payload := map[string]any{
		"status":  "success",
		"query":   page.Query,
		"count":   len(page.Hits),
		"total":   page.TotalAvailable,
		"results": page.Hits,
		"pagination": map[string]any{
			"start_offset": page.StartOffset,
			"max_results":  page.MaxResults,
			"has_more":     page.HasMore,
		},
	}
	if len(page.Failures) > 0 {
		payload["partial_failures"] = page.Failures
	}
	return s.successResponse(id, payload)
}

func (s *Server) handleReadZimEntry(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args struct {
		ZimFile   string `json:"zim_file"`
		EntryPath string `json:"entry_path"`
		Format    string `json:"format"`
		MaxLength int    `json:"max_length"`
	}

	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.ZimFile == "" || args.EntryPath == "" {
		return s.errorResponse(id, InvalidParams, "zim_file and entry_path are required")
	}

	format := s.defaultFormat
	if args.Format != "" {
		var err error
		format, err = zim.ParseFormat(args.Format)
		if err != nil {
			return s.toolError(id, err)
		}
	}

	entry, err := s.service.ReadEntry(ctx, args.ZimFile, args.EntryPath, format, args.MaxLength)
	if err != nil {
		return s.toolError(id, err)
	}

	return s.successResponse(id, map[string]any{
		"status": "success",
		"entry":  entry,
	})
}

func (s *Server) handleSearchAndExtract(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args struct {
		Query      string   `json:"query"`
		ZimFiles   []string `json:"zim_files"`
		MaxResults int      `json:"max_results"`
		Format     string   `json:"format"`
		MaxLength  int      `json:"max_content_length"`
	}

	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.Query == "" {
		return s.errorResponse(id, InvalidParams, "query is required")
	}

	format := s.defaultFormat
	if args.Format != "" {
		var err error
		format, err = zim.ParseFormat(args.Format)
		if err != nil {
			return s.toolError(id, err)
		}
	}
	// raw bytes in a batched extraction response are never useful
	if format == zim.FormatRaw {
		return s.toolError(id, zim.InvalidArgumentError("format must be text or html for extraction"))
	}

	results, err := s.service.SearchAndExtract(ctx, args.Query, args.ZimFiles, args.MaxResults, format, args.MaxLength)
	if err != nil {
		return s.toolError(id, err)
	}

	return s.successResponse(id, map[string]any{
		"status":  "success",
		"query":   args.Query,
		"count":   len(results),
		"results": results,
		"format":  string(format),
	})
}

func (s *Server) handleBrowseZimEntries(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args struct {
		ZimFile      string `json:"zim_file"`
		PathPattern  string `json:"path_pattern"`
		TitlePattern string `json:"title_pattern"`
		Limit        int    `json:"limit"`
	}

	if err := json.Unmarshal(arguments, &args); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid arguments: "+err.Error())
	}
	if args.ZimFile == "" {
		return s.errorResponse(id, InvalidParams, "zim_file is required")
	}
	if args.Limit == 0 {
		args.Limit = 50
	}

	entries, err := s.service.Browse(ctx, args.ZimFile, args.PathPattern, args.TitlePattern, args.Limit)
	if err != nil {
		return s.toolError(id, err)
	}

	payload := map[string]any{
		"status":   "success",
		"zim_file": args.ZimFile,
		"count":    len(entries),
		"entries":  entries,
	}
	if args.PathPattern != "" {
		payload["path_pattern"] = args.PathPattern
	}
	if args.TitlePattern != "" {
		payload["title_pattern"] = args.TitlePattern
	}
	return s.successResponse(id, payload)
}

func (s *Server) handleGetRandomEntries(ctx context.Context, id any, arguments json.RawMessage) *Response {
	var args struct {
		ZimFiles []string `json:"zim_files"`
		Count    int      `json:"count"`
	}

	if err := json.Unmarshal(arguments, &args); err != nil {
		// Empty args is okay: all archives, default count
		args.ZimFiles = nil
		args.Count = 0
	}
	if args.Count == 0 {
		args.Count = 5
	}

	entries, err := s.service.RandomEntries(ctx, args.ZimFiles, args.Count)
	if err != nil {
		return s.toolError(id, err)
	}

	return s.successResponse(id, map[string]any{
		"status":  "success",
		"count":   len(entries),
		"entries": entries,
	})
}
