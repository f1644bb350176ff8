// Package mcp implements the Model Context Protocol (MCP) server for obsidian-rag.
//
// The MCP server exposes three tools to AI assistants:
//   - reindex_notes: incrementally index the configured vault
//   - search_notes: find note sections similar to a query
//   - get_status: index size, embedding model, last pass
//
// The vault root, store and embedding model come from configuration; tools
// never take paths. Every handler goes through the shared *rag.Service.
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. stdout is reserved for
// protocol messages, so the process logs to stderr.
//
//	obsidian-rag serve
//	obsidian-rag serve --watch   # also reindex when the vault changes
//
// # Tool: reindex_notes
//
//	Request:
//	{"name": "reindex_notes", "arguments": {"rebuild": false}}
//
//	Response:
//	{
//	  "run_id": "6f1c...",
//	  "indexed": 3,
//	  "unchanged": 120,
//	  "empty": 1,
//	  "unreadable": 0,
//	  "removed": 0,
//	  "chunks_created": 17,
//	  "chunks_failed": 1,
//	  "errors": ["journal/2024-01-02.md#3: embedding service error: ..."]
//	}
//
// # Tool: search_notes
//
//	Request:
//	{"name": "search_notes", "arguments": {"query": "weekly review template", "limit": 5}}
//
//	Response:
//	{
//	  "query": "weekly review template",
//	  "count": 1,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "source_path": "templates/weekly.md",
//	      "headers": ["Weekly Review", "Checklist"],
//	      "chunk_index": 2,
//	      "text": "- inbox zero ...",
//	      "score": 0.71,
//	      "relevance": "71.0%"
//	    }
//	  ]
//	}
//
// # Error Handling
//
// Failures are returned as *MCPError with JSON-RPC style codes:
//   - -32602: invalid params
//   - -32603: internal error (store failure, aborted pass)
//   - -32002: indexing already in progress
//   - -32004: empty query
//   - -32005: embedding service failure
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "obsidian-rag": {
//	      "command": "/usr/local/bin/obsidian-rag",
//	      "args": ["serve", "--watch"],
//	      "env": {"OBSIDIAN_RAG_VAULT": "/home/me/notes"}
//	    }
//	  }
//	}
package mcp
