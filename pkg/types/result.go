package types

// SearchResult represents a single ranked search hit
type SearchResult struct {
	// Identification
	ChunkID int64
	Rank    int // Position in result set (1-based)

	// Content
	Text       string
	SourcePath string // Relative to the indexed root
	Metadata   ChunkMetadata

	// Scoring
	Distance float64 // Euclidean distance between unit vectors, in [0, 2]
	Score    float64 // 1 - Distance
}

// Relevance returns the score as a rough percentage for display.
// It is a monotonic transform of cosine similarity, not a calibrated probability.
func (sr *SearchResult) Relevance() float64 {
	return sr.Score * 100
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Distance < 0 || sr.Distance > 2+1e-6 {
		return ErrInvalidDistance
	}

	if sr.SourcePath == "" {
		return ErrMissingSourcePath
	}

	if sr.Text == "" {
		return ErrEmptyContent
	}

	return nil
}
