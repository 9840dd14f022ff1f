package mcp

import (
	"context"
	"encoding/json"
	"strings"
)

const zimScheme = "zim://"

// handleResourcesList lists the addressable read-only resources: the archive
// listing plus one metadata resource per discovered archive.
func (s *Server) handleResourcesList(ctx context.Context, id any) *Response {
	resources := []ResourceListItem{
		{
			URI:         "zim://files",
			Name:        "ZIM file listing",
			Description: "All available ZIM files with metadata",
			MimeType:    "application/json",
		},
	}
	for _, f := range s.service.ListArchives(ctx) {
		resources = append(resources, ResourceListItem{
			URI:         "zim://file/" + f.Filename + "/metadata",
			Name:        f.Title,
			Description: "Metadata for " + f.Filename,
			MimeType:    "application/json",
		})
	}
	return s.resultResponse(id, map[string]any{
		"resources": resources,
	})
}

// handleResourcesRead serves zim://files, zim://file/{name}/metadata, and
// zim://file/{name}/entry/{path}.
func (s *Server) handleResourcesRead(ctx context.Context, req *Request, id any) *Response {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid parameters")
	}

	text, mime, ok := s.readResource(ctx, params.URI)
	if !ok {
		return s.errorResponse(id, ResourceNotFound, "Resource not found: "+params.URI)
	}

	return s.resultResponse(id, map[string]any{
		"contents": []ResourceContent{
			{URI: params.URI, MimeType: mime, Text: text},
		},
	})
}

func (s *Server) readResource(ctx context.Context, uri string) (text, mime string, ok bool) {
	if !strings.HasPrefix(uri, zimScheme) {
		return "", "", false
	}
	rest := strings.TrimPrefix(uri, zimScheme)

	if rest == "files" {
		files := s.service.ListArchives(ctx)
		data, err := json.MarshalIndent(files, "", "  ")
		if err != nil {
			return "", "", false
		}
		return string(data), "application/json", true
	}

	rest, found := strings.CutPrefix(rest, "file/")
	if !found {
		return "", "", false
	}
	name, sub, found := strings.Cut(rest, "/")
	if !found || name == "" {
		return "", "", false
	}

	switch {
	case sub == "metadata":
		details, err := s.service.ArchiveMetadata(ctx, name)
		if err != nil {
			return "", "", false
		}
		data, err := json.MarshalIndent(details, "", "  ")
		if err != nil {
			return "", "", false
		}
		return string(data), "application/json", true

	case strings.HasPrefix(sub, "entry/"):
		path := strings.TrimPrefix(sub, "entry/")
		if path == "" {
			return "", "", false
		}
		entry, err := s.service.ReadEntry(ctx, name, path, s.defaultFormat, 0)
		if err != nil {
			return "", "", false
		}
		return entry.Content, "text/plain", true
	}
	return "", "", false
}
