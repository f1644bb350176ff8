// Package rag is the facade front ends consume.
//
// A Service owns one store, one embedder, the indexer and the searcher. The CLI,
// the MCP server and the file watcher all receive the same *Service; none of
// them reach into storage directly.
//
//	svc, err := rag.Open(ctx, cfg, logger)
//	if err != nil { ... }
//	defer svc.Close()
//	if err := svc.Initialize(ctx); err != nil { ... }
//
//	stats, err := svc.ReindexAll(ctx)
//	results, err := svc.Search(ctx, "weekly review", 5)
//
// Only one pass runs at a time. ReindexAll, Rebuild and Reset return
// ErrIndexingInProgress instead of queueing behind a running pass. A pass that
// wrote to the index purges the search cache.
package rag
