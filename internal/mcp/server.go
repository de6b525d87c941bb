package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server   *mcp.Server
	searcher Searcher
	ingester Ingester
	catalog  Catalog
}

// Config holds server dependencies.
type Config struct {
	Searcher Searcher
	Ingester Ingester
	Catalog  Catalog
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "ragbot-index-server",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_chunks",
		Description: "Search the embedding index semantically. Returns the most similar chunks with their source document and similarity score.",
	}, makeSearchHandler(cfg.Searcher))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_document",
		Description: "Chunk, embed and store a text document in the index under a unique name.",
	}, makeIngestHandler(cfg.Ingester))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List all indexed documents with their chunk counts and embedding model.",
	}, makeListHandler(cfg.Catalog))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Remove a document and all of its chunks from the index.",
	}, makeDeleteHandler(cfg.Catalog))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Get the current status of the embedding index including document and chunk counts, vector dimension and embedding model.",
	}, makeStatusHandler(cfg.Catalog))

	return &Server{
		server:   server,
		searcher: cfg.Searcher,
		ingester: cfg.Ingester,
		catalog:  cfg.Catalog,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
