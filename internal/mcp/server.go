package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ambisinistra/obsidian-rag/internal/rag"
)

const (
	// ServerName is the MCP server name
	ServerName = "obsidian-rag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	service *rag.Service
	logger  *slog.Logger
}

// NewServer creates a new MCP server instance backed by svc.
// The caller keeps ownership of svc and closes it after Serve returns.
func NewServer(svc *rag.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcp:     mcpServer,
		service: svc,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve speaks MCP on stdin/stdout until ctx is cancelled or input ends
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen speaks MCP over the given streams
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("MCP server ready, listening on stdio")
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(reindexNotesTool(), s.handleReindexNotes)
	s.mcp.AddTool(searchNotesTool(), s.handleSearchNotes)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
