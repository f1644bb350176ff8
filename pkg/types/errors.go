package types

import "errors"

// Domain errors for type validation
var (
	// Search result errors
	ErrInvalidChunkID    = errors.New("invalid chunk ID")
	ErrInvalidRank       = errors.New("rank must be >= 1")
	ErrInvalidDistance   = errors.New("distance must be between 0 and 2")
	ErrMissingSourcePath = errors.New("source path is required")
	ErrEmptyContent      = errors.New("content cannot be empty")
)
