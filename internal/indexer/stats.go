package indexer

import (
	"fmt"
	"time"

	"github.com/ambisinistra/obsidian-rag/internal/hasher"
)

// State is the terminal state of one document in a pass
type State string

const (
	StateUnchanged  State = "unchanged"
	StateEmpty      State = "empty"
	StateIndexed    State = "indexed"
	StateUnreadable State = "unreadable"
	StateFailed     State = "failed" // store error; the pass was aborted here
)

// ChunkOutcome is the result of embedding and storing one segment
type ChunkOutcome struct {
	Index   int
	Headers []string
	Err     error
}

// DocumentOutcome is the result of processing one document
type DocumentOutcome struct {
	Path        string
	DocumentID  int64
	Fingerprint hasher.Fingerprint
	State       State
	Chunks      []ChunkOutcome
	Removed     bool // an emptied document's old record was deleted
	Err         error
	Duration    time.Duration
}

// Succeeded returns the number of chunks stored
func (d DocumentOutcome) Succeeded() int {
	n := 0
	for _, c := range d.Chunks {
		if c.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of chunks skipped
func (d DocumentOutcome) Failed() int {
	return len(d.Chunks) - d.Succeeded()
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Indexed    int
	Unchanged  int
	Empty      int
	Unreadable int
	Removed    int // emptied or pruned documents deleted from the index

	ChunksCreated int
	ChunksFailed  int

	Cancelled bool
	Documents []DocumentOutcome
	Pruned    []string
}

func (s *Statistics) record(o DocumentOutcome) {
	s.Documents = append(s.Documents, o)
	switch o.State {
	case StateIndexed:
		s.Indexed++
	case StateUnchanged:
		s.Unchanged++
	case StateEmpty:
		s.Empty++
	case StateUnreadable:
		s.Unreadable++
	}
	if o.Removed {
		s.Removed++
	}
	s.ChunksCreated += o.Succeeded()
	s.ChunksFailed += o.Failed()
}

// Processed returns the number of documents visited
func (s *Statistics) Processed() int {
	return len(s.Documents)
}

// Writes reports whether the pass changed the index. A document that failed
// after its record was upserted counts, since its old chunks are gone.
func (s *Statistics) Writes() bool {
	if s.Indexed > 0 || s.Removed > 0 {
		return true
	}
	for _, d := range s.Documents {
		if d.DocumentID != 0 {
			return true
		}
	}
	return false
}

// ErrorMessages lists every skipped document and chunk as "path: error" lines
func (s *Statistics) ErrorMessages() []string {
	var msgs []string
	for _, d := range s.Documents {
		if d.Err != nil {
			msgs = append(msgs, fmt.Sprintf("%s: %v", d.Path, d.Err))
		}
		for _, c := range d.Chunks {
			if c.Err != nil {
				msgs = append(msgs, fmt.Sprintf("%s#%d: %v", d.Path, c.Index, c.Err))
			}
		}
	}
	return msgs
}

// Summary is a one-line description suitable for CLI output
func (s *Statistics) Summary() string {
	return fmt.Sprintf("%d indexed, %d unchanged, %d empty, %d unreadable, %d removed; %d chunks stored, %d failed in %s",
		s.Indexed, s.Unchanged, s.Empty, s.Unreadable, s.Removed,
		s.ChunksCreated, s.ChunksFailed, s.Duration.Round(time.Millisecond))
}
