package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambisinistra/obsidian-rag/internal/embedder"
	"github.com/ambisinistra/obsidian-rag/internal/indexer"
	"github.com/ambisinistra/obsidian-rag/internal/rag"
	"github.com/ambisinistra/obsidian-rag/internal/storage"
)

func setupServer(t *testing.T, notes map[string]string) *Server {
	t.Helper()
	root := t.TempDir()
	for rel, content := range notes {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	svc := rag.NewService(store, embedder.NewClient(embedder.NewLocalProvider(32)),
		rag.WithVault(indexer.Config{Root: root, PruneMissing: true}))
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })

	return NewServer(svc, nil)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

// decodeResult parses the JSON text payload of a tool result
func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	var text string
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

var vault = map[string]string{
	"go.md":          "# Go\n## Errors\nwrap errors with fmt.Errorf and %w",
	"recipes/tea.md": "# Tea\nsteep green tea for two minutes",
}

func TestReindexNotes(t *testing.T) {
	s := setupServer(t, vault)
	ctx := context.Background()

	result, err := s.handleReindexNotes(ctx, callRequest("reindex_notes", nil))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.EqualValues(t, 2, out["indexed"])
	assert.EqualValues(t, 2, out["chunks_created"])
	assert.NotEmpty(t, out["run_id"])

	result, err = s.handleReindexNotes(ctx, callRequest("reindex_notes", map[string]interface{}{}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.EqualValues(t, 0, out["indexed"])
	assert.EqualValues(t, 2, out["unchanged"])

	result, err = s.handleReindexNotes(ctx, callRequest("reindex_notes", map[string]interface{}{"rebuild": true}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.EqualValues(t, 2, out["indexed"])
}

func TestReindexNotes_InvalidArguments(t *testing.T) {
	s := setupServer(t, vault)
	req := callRequest("reindex_notes", nil)
	req.Params.Arguments = "not an object"

	_, err := s.handleReindexNotes(context.Background(), req)
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSearchNotes(t *testing.T) {
	s := setupServer(t, vault)
	ctx := context.Background()
	_, err := s.handleReindexNotes(ctx, callRequest("reindex_notes", nil))
	require.NoError(t, err)

	result, err := s.handleSearchNotes(ctx, callRequest("search_notes", map[string]interface{}{
		"query": "wrap errors with fmt.Errorf and %w",
		"limit": float64(1),
	}))
	require.NoError(t, err)
	out := decodeResult(t, result)

	assert.EqualValues(t, 1, out["count"])
	items := out["results"].([]interface{})
	require.Len(t, items, 1)
	top := items[0].(map[string]interface{})
	assert.Equal(t, "go.md", top["source_path"])
	assert.Equal(t, []interface{}{"Go", "Errors"}, top["headers"])
	assert.EqualValues(t, 1, top["rank"])
	assert.InDelta(t, 1.0, top["score"], 1e-5)
}

func TestSearchNotes_EmptyIndex(t *testing.T) {
	s := setupServer(t, nil)

	result, err := s.handleSearchNotes(context.Background(), callRequest("search_notes", map[string]interface{}{"query": "tea"}))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.EqualValues(t, 0, out["count"])
	assert.Empty(t, out["results"])
	assert.Contains(t, out["message"], "reindex_notes")
}

func TestSearchNotes_Validation(t *testing.T) {
	s := setupServer(t, vault)
	ctx := context.Background()

	_, err := s.handleSearchNotes(ctx, callRequest("search_notes", map[string]interface{}{"query": "  "}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchNotes(ctx, callRequest("search_notes", nil))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchNotes(ctx, callRequest("search_notes", map[string]interface{}{"query": "tea", "limit": float64(0)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchNotes(ctx, callRequest("search_notes", map[string]interface{}{"query": "tea", "limit": float64(101)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus(t *testing.T) {
	s := setupServer(t, vault)
	ctx := context.Background()

	result, err := s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, false, out["indexed"])
	assert.Nil(t, out["last_run"])

	_, err = s.handleReindexNotes(ctx, callRequest("reindex_notes", nil))
	require.NoError(t, err)

	result, err = s.handleGetStatus(ctx, callRequest("get_status", nil))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.Equal(t, true, out["indexed"])
	index := out["index"].(map[string]interface{})
	assert.EqualValues(t, 2, index["documents"])
	assert.EqualValues(t, 2, index["chunks"])
	assert.NotEmpty(t, index["last_indexed_at"])
	embedding := index["embedding"].(map[string]interface{})
	assert.EqualValues(t, 32, embedding["dimension"])
	assert.NotNil(t, out["last_run"])
}

func TestToolsAreRegistered(t *testing.T) {
	s := setupServer(t, nil)

	resp := s.mcp.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"reindex_notes", "search_notes", "get_status"} {
		assert.Contains(t, string(raw), name)
	}
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	assert.Equal(t, "MCP error -32002: indexing already in progress", err.Error())
}
