// Package chunker splits markdown notes into structurally bounded segments.
//
// A segment is the contiguous text between two headings of level 1-3
// ("#", "##", "###" followed by whitespace). Heading lines are removed from
// the segment text and kept as the segment's header context: the stack of
// enclosing headings at that point of the document.
//
//	# A
//	hello
//	## B
//	world
//
// yields ("hello", ["A"]) and ("world", ["A", "B"]). A following "# C" pops
// both A and B. Segments whose trimmed text is empty are never emitted, and a
// note without headings yields a single segment with an empty header stack.
//
// # Basic Usage
//
//	c := chunker.New()
//	for seg := range c.Split(text) {
//	    fmt.Println(seg.Headers, seg.Content)
//	}
//
// Split returns an iter.Seq that reads the text once per range loop; nothing
// is buffered beyond the current segment.
//
// Fenced code blocks (``` or ~~~) are opaque: a "# comment" inside a shell
// snippet does not start a new segment.
package chunker
