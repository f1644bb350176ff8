// Package searcher answers similarity queries against the index.
//
// A query is embedded with the same Embedder used for indexing, so it lands in
// the same unit-normalized space as the stored chunks. The store returns the
// nearest chunks by Euclidean distance; each result carries
//
//	Score = 1 - Distance
//
// For unit vectors Distance = sqrt(2 - 2cos), so Score is a monotonic transform
// of cosine similarity in [-1, 1]. Results are ranked from 1 in ascending
// distance order and never exceed the requested limit.
//
// # Caching
//
// Execute can serve repeated queries from an LRU cache keyed by SHA-256 of the
// normalized query and limit. Entries expire after a TTL (10 minutes by
// default) and the whole cache is purged by InvalidateCache, which the service
// calls after every pass that wrote to the index.
//
// # Usage
//
//	s := searcher.NewSearcher(store, emb)
//	results, err := s.Search(ctx, "how do I handle errors", 5)
//	if errors.Is(err, searcher.ErrEmptyQuery) {
//		// reject input
//	}
//	for _, r := range results {
//		fmt.Printf("%d. %s (%.1f%%)\n", r.Rank, r.SourcePath, r.Relevance())
//	}
package searcher
