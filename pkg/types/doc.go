// Package types provides shared type definitions for obsidian-rag.
//
// ChunkMetadata is the opaque JSON document stored next to every chunk:
//
//	{"file_name": "go.md", "chunk_index": 0, "headers": ["Go", "Errors"], "file_path": "lang/go.md"}
//
// SearchResult is what front ends receive from a query. Score is 1 - Distance,
// where Distance is the Euclidean distance between unit-normalized embeddings;
// Relevance() scales it to a percentage for display.
package types
