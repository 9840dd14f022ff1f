package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jonesrussell/zim-mcp/internal/config"
	"github.com/jonesrussell/zim-mcp/internal/logger"
	"github.com/jonesrussell/zim-mcp/internal/mcp"
	"github.com/jonesrussell/zim-mcp/internal/zim"
	"github.com/jonesrussell/zim-mcp/internal/zippack"
)

func main() {
	// Read from stdin, write to stdout
	// IMPORTANT: Only JSON should go to stdout for MCP protocol
	// All errors/logs go to stderr
	cfgPath := os.Getenv("ZIM_MCP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yml"
	}
	cfg := config.LoadOrDefault(cfgPath)

	log := logger.Must(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	defer func() { _ = log.Sync() }()

	format, err := zim.ParseFormat(cfg.Content.DefaultFormat)
	if err != nil {
		log.Warn("invalid default content format, using text",
			zap.String("format", cfg.Content.DefaultFormat))
		format = zim.FormatText
	}

	service, err := zim.NewService(zim.Options{
		Directory:             cfg.Archives.Directory,
		Open:                  zippack.Open,
		ArchiveCacheSize:      cfg.Archives.CacheSize,
		SearchCacheSize:       cfg.Search.CacheSize,
		MaxSearchResults:      cfg.Search.MaxResults,
		SearchTimeout:         cfg.Search.Timeout,
		MaxConcurrentSearches: cfg.Search.MaxConcurrent,
		MaxContentLength:      cfg.Content.MaxLength,
		RedirectDepth:         cfg.Content.RedirectDepth,
		Logger:                log,
	})
	if err != nil {
		log.Fatal("failed to start archive service", zap.Error(err))
	}
	defer service.Close()

	server := mcp.NewServer(service, format, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("ZIM MCP server listening on stdio",
		zap.String("directory", cfg.Archives.Directory))

	// MCP protocol expects compact JSON (no indentation) for better compatibility
	decoder := json.NewDecoder(os.Stdin)
	encoder := json.NewEncoder(os.Stdout)

	for ctx.Err() == nil {
		var request mcp.Request
		if err := decoder.Decode(&request); err != nil {
			if err == io.EOF {
				break
			}
			// For parse errors we can't get the ID from the request.
			// JSON-RPC requires ID to be string or number, not null.
			sendError(encoder, 0, mcp.ParseError, "Failed to parse request")
			continue
		}

		// JSON-RPC notifications (requests without ID) don't require responses
		response := server.HandleRequest(ctx, &request)
		if response == nil || request.ID == nil {
			continue
		}
		if response.ID == nil {
			response.ID = request.ID
		}
		if encodeErr := encoder.Encode(response); encodeErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode response: %v\n", encodeErr)
		}
	}
}

func sendError(encoder *json.Encoder, id any, code int, message string) {
	errorResponse := mcp.ErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: mcp.ErrorObject{
			Code:    code,
			Message: message,
		},
	}
	if encodeErr := encoder.Encode(errorResponse); encodeErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode error response: %v\n", encodeErr)
	}
}
