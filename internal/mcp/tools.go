package mcp

// getAllTools returns all available MCP tools.
func getAllTools() []Tool {
	return []Tool{
		{
			Name:        "list_zim_files",
			Description: "List all available ZIM files in the configured directory with their metadata.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "get_zim_metadata",
			Description: "Get detailed metadata about a specific ZIM file.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"zim_file": map[string]any{
						"type":        "string",
						"description": "Filename of the ZIM file (as returned by list_zim_files)",
					},
				},
				"required": []string{"zim_file"},
			},
		},
		{
			Name:        "search_zim_files",
			Description: "Search for content across one or multiple ZIM files. Results are merged, ranked, and paginated; a failing archive contributes zero hits and is reported under partial_failures.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query string",
					},
					"zim_files": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Specific ZIM files to search (default: all available)",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results per page (default 20, max 100)",
					},
					"start_offset": map[string]any{
						"type":        "integer",
						"description": "Pagination offset into the merged result set (default 0)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "read_zim_entry",
			Description: "Read specific entry content from a ZIM file. Follows redirects; converts content to the requested format.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"zim_file": map[string]any{
						"type":        "string",
						"description": "Filename of the ZIM file",
					},
					"entry_path": map[string]any{
						"type":        "string",
						"description": "Path of the entry inside the archive",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Output format for the entry content",
						"enum":        []string{"text", "html", "raw"},
					},
					"max_length": map[string]any{
						"type":        "integer",
						"description": "Truncate content beyond this many characters (default from server config)",
					},
				},
				"required": []string{"zim_file", "entry_path"},
			},
		},
		{
			Name:        "search_and_extract_content",
			Description: "Search and return the full extracted content of the top matching entries, preserving hit order.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query string",
					},
					"zim_files": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Specific ZIM files to search (default: all available)",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum entries to extract content for (default 5, max 50)",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Content format",
						"enum":        []string{"text", "html"},
					},
					"max_content_length": map[string]any{
						"type":        "integer",
						"description": "Maximum content length per entry",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "browse_zim_entries",
			Description: "Browse entries of a ZIM file filtered by path and/or title substring patterns, in listing order.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"zim_file": map[string]any{
						"type":        "string",
						"description": "ZIM file to browse",
					},
					"path_pattern": map[string]any{
						"type":        "string",
						"description": "Case-insensitive substring to match against entry paths",
					},
					"title_pattern": map[string]any{
						"type":        "string",
						"description": "Case-insensitive substring to match against entry titles",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum entries to return (default 50)",
					},
				},
				"required": []string{"zim_file"},
			},
		},
		{
			Name:        "get_random_entries",
			Description: "Get random entries from ZIM files for exploration, apportioned evenly across archives.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"zim_files": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Specific ZIM files to sample (default: all available)",
					},
					"count": map[string]any{
						"type":        "integer",
						"description": "Number of random entries to return (default 5, max 50)",
					},
				},
			},
		},
	}
}
