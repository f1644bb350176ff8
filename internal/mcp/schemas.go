package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// reindexNotesTool returns the tool definition for reindex_notes
func reindexNotesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_notes",
		Description: "Incrementally index the configured notes vault; unchanged notes are skipped",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"rebuild": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, clear the index and re-embed every note",
					"default":     false,
				},
			},
		},
	}
}

// searchNotesTool returns the tool definition for search_notes
func searchNotesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_notes",
		Description: "Find note sections semantically similar to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index size, embedding model and the most recent indexing pass",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
