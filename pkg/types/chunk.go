package types

import (
	"encoding/json"
	"errors"
	"strings"
)

// ChunkMetadata is the structural metadata stored verbatim alongside every chunk.
// The store never interprets it; it is written and returned as JSON.
type ChunkMetadata struct {
	FileName   string   `json:"file_name"`
	ChunkIndex int      `json:"chunk_index"`
	Headers    []string `json:"headers"`
	FilePath   string   `json:"file_path"`
}

// Validate checks that the metadata describes a real chunk position
func (m *ChunkMetadata) Validate() error {
	if m.FilePath == "" {
		return errors.New("metadata file path is required")
	}
	if m.FileName == "" {
		return errors.New("metadata file name is required")
	}
	if m.ChunkIndex < 0 {
		return errors.New("chunk index must be >= 0")
	}
	return nil
}

// Breadcrumb joins the heading stack for display, e.g. "Projects > Go > Notes"
func (m *ChunkMetadata) Breadcrumb() string {
	return strings.Join(m.Headers, " > ")
}

// MarshalMetadata encodes metadata for storage. A nil header stack is written as [].
func MarshalMetadata(m ChunkMetadata) ([]byte, error) {
	if m.Headers == nil {
		m.Headers = []string{}
	}
	return json.Marshal(m)
}

// UnmarshalMetadata decodes metadata read back from storage
func UnmarshalMetadata(data []byte) (ChunkMetadata, error) {
	var m ChunkMetadata
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	if m.Headers == nil {
		m.Headers = []string{}
	}
	return m, nil
}
