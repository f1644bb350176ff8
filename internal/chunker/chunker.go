package chunker

import (
	"iter"
	"slices"
	"strings"
)

const (
	// DefaultMaxLevel is the deepest heading level that starts a new segment (###)
	DefaultMaxLevel = 3
)

// Segment is one structurally bounded span of a markdown document
type Segment struct {
	// Content is the trimmed text between two boundaries, heading lines excluded
	Content string

	// Headers is the active heading stack at this point, outermost first.
	// Never nil; empty when the segment precedes every heading.
	Headers []string
}

// Chunker splits markdown text on heading boundaries
type Chunker struct {
	maxLevel int
}

// New creates a Chunker that splits on heading levels 1 through 3
func New() *Chunker {
	return &Chunker{maxLevel: DefaultMaxLevel}
}

// NewWithMaxLevel creates a Chunker that splits on heading levels 1 through maxLevel.
// Values outside 1..6 fall back to DefaultMaxLevel.
func NewWithMaxLevel(maxLevel int) *Chunker {
	if maxLevel < 1 || maxLevel > 6 {
		maxLevel = DefaultMaxLevel
	}
	return &Chunker{maxLevel: maxLevel}
}

// MaxLevel returns the deepest heading level treated as a boundary
func (c *Chunker) MaxLevel() int {
	return c.maxLevel
}

type heading struct {
	level int
	title string
}

// Split lazily yields the non-empty segments of text in document order.
// Heading lines are stripped from segment content and recorded in Headers.
// Headings inside fenced code blocks are treated as content.
func (c *Chunker) Split(text string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		var (
			stack   []heading
			body    []string
			fence   string
			inFence bool
		)

		flush := func() bool {
			content := strings.TrimSpace(strings.Join(body, "\n"))
			body = body[:0]
			if content == "" {
				return true
			}
			return yield(Segment{Content: content, Headers: titles(stack)})
		}

		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimRight(line, "\r")
			trimmed := strings.TrimSpace(line)

			if marker, ok := fenceMarker(trimmed); ok {
				switch {
				case !inFence:
					inFence, fence = true, marker
				case marker == fence:
					inFence = false
				}
				body = append(body, line)
				continue
			}

			if !inFence {
				if level, title, ok := c.parseHeading(trimmed); ok {
					if !flush() {
						return
					}
					for len(stack) > 0 && stack[len(stack)-1].level >= level {
						stack = stack[:len(stack)-1]
					}
					stack = append(stack, heading{level: level, title: title})
					continue
				}
			}

			body = append(body, line)
		}

		flush()
	}
}

// Collect materializes every segment of text
func (c *Chunker) Collect(text string) []Segment {
	return slices.Collect(c.Split(text))
}

// parseHeading recognizes ATX headings up to the configured level.
// "#tag" (no space) is an Obsidian tag, not a heading.
func (c *Chunker) parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > c.maxLevel || level == len(line) {
		return 0, "", false
	}
	if line[level] != ' ' && line[level] != '\t' {
		return 0, "", false
	}
	title := strings.TrimSpace(line[level:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// fenceMarker returns the fence type when line opens or closes a code block
func fenceMarker(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```", true
	case strings.HasPrefix(line, "~~~"):
		return "~~~", true
	}
	return "", false
}

func titles(stack []heading) []string {
	out := make([]string, len(stack))
	for i, h := range stack {
		out[i] = h.title
	}
	return out
}
