package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/zim-mcp/internal/logger"
	"github.com/jonesrussell/zim-mcp/internal/zim"
)

// serverName and protocolVersion identify this server to MCP clients.
const (
	serverName      = "zim-mcp"
	serverVersion   = "1.0.0"
	protocolVersion = "2024-11-05"
)

// Server handles MCP protocol requests over the ZIM archive service.
type Server struct {
	service       *zim.Service
	defaultFormat zim.Format
	log           logger.Logger
}

// NewServer creates a new MCP server around the archive service.
func NewServer(service *zim.Service, defaultFormat zim.Format, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		service:       service,
		defaultFormat: defaultFormat,
		log:           log,
	}
}

// HandleRequest processes an MCP request and returns a response.
// Returns nil for notifications (requests without ID) - they don't require responses.
func (s *Server) HandleRequest(ctx context.Context, req *Request) *Response {
	requestID := req.ID

	switch req.Method {
	case "initialize":
		return s.handleInitialize(requestID)
	case "tools/list":
		return s.handleToolsList(requestID)
	case "tools/call":
		return s.handleToolsCall(ctx, req, requestID)
	case "resources/list":
		return s.handleResourcesList(ctx, requestID)
	case "resources/read":
		return s.handleResourcesRead(ctx, req, requestID)
	case "ping":
		return &Response{
			JSONRPC: "2.0",
			ID:      requestID,
			Result:  json.RawMessage(`"pong"`),
		}
	}

	// Unknown method - only return error if this was a request (has ID).
	// Notifications (no ID) don't require responses.
	if requestID == nil {
		return nil
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      requestID,
		Error: &ErrorObject{
			Code:    MethodNotFound,
			Message: "Method not found",
		},
	}
}

// handleInitialize handles the initialize request
func (s *Server) handleInitialize(id any) *Response {
	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	}
	return s.resultResponse(id, result)
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(id any) *Response {
	return s.resultResponse(id, map[string]any{
		"tools": getAllTools(),
	})
}

// handleToolsCall executes a tool call
func (s *Server) handleToolsCall(ctx context.Context, req *Request, id any) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(id, InvalidParams, "Invalid parameters")
	}

	switch params.Name {
	case "list_zim_files":
		return s.handleListZimFiles(ctx, id)
	case "get_zim_metadata":
		return s.handleGetZimMetadata(ctx, id, params.Arguments)
	case "search_zim_files":
		return s.handleSearchZimFiles(ctx, id, params.Arguments)
	case "read_zim_entry":
		return s.handleReadZimEntry(ctx, id, params.Arguments)
	case "search_and_extract_content":
		return s.handleSearchAndExtract(ctx, id, params.Arguments)
	case "browse_zim_entries":
		return s.handleBrowseZimEntries(ctx, id, params.Arguments)
	case "get_random_entries":
		return s.handleGetRandomEntries(ctx, id, params.Arguments)
	default:
		return s.errorResponse(id, MethodNotFound, "Unknown tool: "+params.Name)
	}
}

// resultResponse marshals a result payload into a Response.
func (s *Server) resultResponse(id any, result any) *Response {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", err))
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  json.RawMessage(resultJSON),
	}
}

// successResponse wraps a structured tool payload as JSON text content.
func (s *Server) successResponse(id any, payload any) *Response {
	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", err))
	}
	return s.resultResponse(id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(text)},
		},
		"isError": false,
	})
}

// toolError wraps a domain failure as a structured status:"error" tool
// result. Protocol-level problems use errorResponse instead.
func (s *Server) toolError(id any, err error) *Response {
	kind := zim.KindOf(err)
	if kind == "" {
		kind = "internal"
	}
	payload := map[string]any{
		"status":  "error",
		"error":   string(kind),
		"message": err.Error(),
	}
	text, marshalErr := json.MarshalIndent(payload, "", "  ")
	if marshalErr != nil {
		return s.errorResponse(id, InternalError, fmt.Sprintf("Failed to marshal result: %v", marshalErr))
	}
	return s.resultResponse(id, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": string(text)},
		},
		"isError": true,
	})
}

// errorResponse builds a JSON-RPC protocol error.
func (s *Server) errorResponse(id any, code int, message string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
}
