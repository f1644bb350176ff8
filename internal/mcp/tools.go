package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ambisinistra/obsidian-rag/internal/embedder"
	"github.com/ambisinistra/obsidian-rag/internal/indexer"
	"github.com/ambisinistra/obsidian-rag/internal/rag"
	"github.com/ambisinistra/obsidian-rag/internal/searcher"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeEmbeddingFailed    = -32005 // Embedding service rejected or failed the request
)

// maxReportedErrors caps the per-document errors echoed back to the client
const maxReportedErrors = 5

// handleReindexNotes handles the reindex_notes tool invocation
func (s *Server) handleReindexNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	rebuild := getBoolDefault(args, "rebuild", false)

	var stats *indexer.Statistics
	if rebuild {
		stats, err = s.service.Rebuild(ctx)
	} else {
		stats, err = s.service.ReindexAll(ctx)
	}
	if errors.Is(err, rag.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		data := map[string]interface{}{"error": err.Error()}
		if stats != nil {
			data["statistics"] = statisticsResponse(stats)
		}
		s.logger.Error("reindex_notes failed", "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", data)
	}

	return mcp.NewToolResultText(formatJSON(statisticsResponse(stats))), nil
}

// handleSearchNotes handles the search_notes tool invocation
func (s *Server) handleSearchNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query := getStringDefault(args, "query", "")
	limit := getIntDefault(args, "limit", 0)
	if _, set := args["limit"]; set && (limit < 1 || limit > searcher.MaxLimit) {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results, err := s.service.Search(ctx, query, limit)
	if errors.Is(err, searcher.ErrEmptyQuery) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	if err != nil {
		code := ErrorCodeInternalError
		if isEmbeddingFailure(err) {
			code = ErrorCodeEmbeddingFailed
		}
		return nil, newMCPError(code, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]interface{}{
			"rank":        r.Rank,
			"source_path": r.SourcePath,
			"headers":     r.Metadata.Headers,
			"chunk_index": r.Metadata.ChunkIndex,
			"text":        r.Text,
			"score":       r.Score,
			"relevance":   fmt.Sprintf("%.1f%%", r.Relevance()),
		})
	}

	response := map[string]interface{}{
		"query":   query,
		"results": items,
		"count":   len(items),
	}
	if len(items) == 0 {
		response["message"] = "No matching notes. Run reindex_notes if the vault has not been indexed."
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.service.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	index := map[string]interface{}{
		"backend":        st.Index.Backend,
		"build_mode":     st.Index.BuildMode,
		"schema_version": st.Index.SchemaVersion,
		"documents":      st.Index.Documents,
		"chunks":         st.Index.Chunks,
	}
	if !st.Index.LastIndexedAt.IsZero() {
		index["last_indexed_at"] = st.Index.LastIndexedAt.Format(time.RFC3339)
	}
	if st.Index.Embedding.Dimension > 0 {
		index["embedding"] = map[string]interface{}{
			"model":     st.Index.Embedding.Model,
			"dimension": st.Index.Embedding.Dimension,
		}
	}

	response := map[string]interface{}{
		"indexed":    st.Index.Documents > 0,
		"indexing":   st.Indexing,
		"vault_root": st.VaultRoot,
		"embedder": map[string]interface{}{
			"provider": st.Provider,
			"model":    st.Model,
		},
		"index": index,
	}
	if st.LastRun != nil {
		response["last_run"] = statisticsResponse(st.LastRun)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func statisticsResponse(stats *indexer.Statistics) map[string]interface{} {
	response := map[string]interface{}{
		"run_id":         stats.RunID,
		"indexed":        stats.Indexed,
		"unchanged":      stats.Unchanged,
		"empty":          stats.Empty,
		"unreadable":     stats.Unreadable,
		"removed":        stats.Removed,
		"chunks_created": stats.ChunksCreated,
		"chunks_failed":  stats.ChunksFailed,
		"cancelled":      stats.Cancelled,
		"duration_ms":    stats.Duration.Milliseconds(),
	}

	if msgs := stats.ErrorMessages(); len(msgs) > 0 {
		if len(msgs) > maxReportedErrors {
			response["errors"] = msgs[:maxReportedErrors]
			response["error_count"] = len(msgs)
		} else {
			response["errors"] = msgs
		}
	}
	return response
}

// Helper functions

func isEmbeddingFailure(err error) bool {
	return errors.Is(err, embedder.ErrEmbeddingService) || errors.Is(err, embedder.ErrDimensionMismatch)
}

// arguments returns the call arguments; a call without arguments yields an empty map
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
