//go:build sqlite_vec && !purego

package storage

// Compiled with CGO and the sqlite_vec tag: distances are computed in SQL by
// the sqlite-vec extension (vec_distance_l2) instead of in Go.
//
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
