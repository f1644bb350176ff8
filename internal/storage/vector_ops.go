package storage

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// nearestSQL selects candidates for the Go-side ranking path
const nearestSQL = `
	SELECT c.id, c.source_id, c.chunk_text, c.metadata, c.embedding, d.file_path
	FROM document_chunks c
	INNER JOIN source_documents d ON d.id = c.source_id
`

// nearestVecSQL lets the sqlite-vec extension compute and order the distances
const nearestVecSQL = `
	SELECT c.id, c.source_id, c.chunk_text, c.metadata, d.file_path,
		vec_distance_l2(c.embedding, ?) AS distance
	FROM document_chunks c
	INNER JOIN source_documents d ON d.id = c.source_id
	ORDER BY distance ASC, c.id ASC
	LIMIT ?
`

// searchNearest dispatches to the extension-backed query when the build has it
func searchNearest(ctx context.Context, q querier, queryVector []float32, limit int) ([]Neighbor, error) {
	if limit <= 0 {
		return []Neighbor{}, nil
	}
	if VectorExtensionAvailable {
		return searchNearestOptimized(ctx, q, queryVector, limit)
	}
	return searchNearestFallback(ctx, q, queryVector, limit)
}

func searchNearestOptimized(ctx context.Context, q querier, queryVector []float32, limit int) ([]Neighbor, error) {
	rows, err := q.QueryContext(ctx, nearestVecSQL, serializeVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Neighbor, 0, limit)
	for rows.Next() {
		var (
			n        Neighbor
			metadata string
		)
		if err := rows.Scan(&n.ChunkID, &n.DocumentID, &n.Text, &metadata, &n.FilePath, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		n.Metadata = []byte(metadata)
		results = append(results, n)
	}
	return results, rows.Err()
}

// searchNearestFallback ranks every stored vector in Go
func searchNearestFallback(ctx context.Context, q querier, queryVector []float32, limit int) ([]Neighbor, error) {
	rows, err := q.QueryContext(ctx, nearestSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := scoreCandidates(rows, queryVector)
	if err != nil {
		return nil, err
	}
	return topK(candidates, limit), nil
}

func scoreCandidates(rows *sql.Rows, queryVector []float32) ([]Neighbor, error) {
	candidates := make([]Neighbor, 0, 256)
	for rows.Next() {
		var (
			n        Neighbor
			metadata string
			blob     []byte
		)
		if err := rows.Scan(&n.ChunkID, &n.DocumentID, &n.Text, &metadata, &blob, &n.FilePath); err != nil {
			return nil, err
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}
		n.Metadata = []byte(metadata)
		n.Distance = euclideanDistance(queryVector, vector)
		candidates = append(candidates, n)
	}
	return candidates, rows.Err()
}

// topK sorts by ascending distance, ties broken by chunk ID, and truncates to limit
func topK(candidates []Neighbor, limit int) []Neighbor {
	slices.SortFunc(candidates, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkID, b.ChunkID)
	})
	if limit < len(candidates) {
		candidates = candidates[:limit]
	}
	return candidates
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// euclideanDistance returns the L2 distance between a and b.
// For unit vectors this is sqrt(2 - 2*cos), so it ranks like cosine similarity.
func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
