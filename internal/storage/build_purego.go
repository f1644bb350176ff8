//go:build purego || !sqlite_vec

package storage

// Default build: pure Go SQLite, no C compiler required. Nearest-neighbor
// ranking scans the chunk table and computes Euclidean distances in Go,
// which is fine for a personal vault of a few thousand notes.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
