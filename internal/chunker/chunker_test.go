package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New()
	assert.NotNil(t, c)
	assert.Equal(t, DefaultMaxLevel, c.MaxLevel())
}

func TestNewWithMaxLevel_Bounds(t *testing.T) {
	assert.Equal(t, 2, NewWithMaxLevel(2).MaxLevel())
	assert.Equal(t, DefaultMaxLevel, NewWithMaxLevel(0).MaxLevel())
	assert.Equal(t, DefaultMaxLevel, NewWithMaxLevel(9).MaxLevel())
}

func TestSplit_NestedHeaders(t *testing.T) {
	segments := New().Collect("# A\nhello\n## B\nworld")

	require.Len(t, segments, 2)
	assert.Equal(t, "hello", segments[0].Content)
	assert.Equal(t, []string{"A"}, segments[0].Headers)
	assert.Equal(t, "world", segments[1].Content)
	assert.Equal(t, []string{"A", "B"}, segments[1].Headers)
}

func TestSplit_NoHeadings(t *testing.T) {
	segments := New().Collect("\n\n  just a plain note\nwith two lines  \n\n")

	require.Len(t, segments, 1)
	assert.Equal(t, "just a plain note\nwith two lines", segments[0].Content)
	assert.NotNil(t, segments[0].Headers)
	assert.Empty(t, segments[0].Headers)
}

func TestSplit_EmptyInput(t *testing.T) {
	assert.Empty(t, New().Collect(""))
	assert.Empty(t, New().Collect("   \n\t\n"))
}

func TestSplit_DiscardsEmptySegments(t *testing.T) {
	text := "# Title\n\n## Empty section\n   \n## Filled\ncontent here\n"
	segments := New().Collect(text)

	require.Len(t, segments, 1)
	assert.Equal(t, "content here", segments[0].Content)
	assert.Equal(t, []string{"Title", "Filled"}, segments[0].Headers)

	for _, seg := range segments {
		assert.NotEmpty(t, strings.TrimSpace(seg.Content))
	}
}

func TestSplit_SiblingAndParentPop(t *testing.T) {
	text := `intro
# A
a body
## B
b body
### C
c body
## D
d body
# E
e body`
	segments := New().Collect(text)

	require.Len(t, segments, 6)
	expected := []struct {
		content string
		headers []string
	}{
		{"intro", []string{}},
		{"a body", []string{"A"}},
		{"b body", []string{"A", "B"}},
		{"c body", []string{"A", "B", "C"}},
		{"d body", []string{"A", "D"}},
		{"e body", []string{"E"}},
	}
	for i, want := range expected {
		assert.Equal(t, want.content, segments[i].Content, "segment %d", i)
		assert.Equal(t, want.headers, segments[i].Headers, "segment %d", i)
	}
}

func TestSplit_LevelFourIsContent(t *testing.T) {
	segments := New().Collect("# A\n#### deep\ntext")

	require.Len(t, segments, 1)
	assert.Equal(t, "#### deep\ntext", segments[0].Content)
	assert.Equal(t, []string{"A"}, segments[0].Headers)
}

func TestSplit_TagsAreNotHeadings(t *testing.T) {
	segments := New().Collect("#project #idea\nsome thought")

	require.Len(t, segments, 1)
	assert.Equal(t, "#project #idea\nsome thought", segments[0].Content)
	assert.Empty(t, segments[0].Headers)
}

func TestSplit_FencedCodeIsOpaque(t *testing.T) {
	text := "# Setup\n```bash\n# install deps\nmake deps\n```\n## Run\ngo run ."
	segments := New().Collect(text)

	require.Len(t, segments, 2)
	assert.Contains(t, segments[0].Content, "# install deps")
	assert.Equal(t, []string{"Setup"}, segments[0].Headers)
	assert.Equal(t, []string{"Setup", "Run"}, segments[1].Headers)
}

func TestSplit_CRLF(t *testing.T) {
	segments := New().Collect("# A\r\nhello\r\n## B\r\nworld\r\n")

	require.Len(t, segments, 2)
	assert.Equal(t, "hello", segments[0].Content)
	assert.Equal(t, []string{"A", "B"}, segments[1].Headers)
}

func TestSplit_CustomMaxLevel(t *testing.T) {
	segments := NewWithMaxLevel(1).Collect("# A\none\n## B\ntwo")

	require.Len(t, segments, 1)
	assert.Equal(t, "one\n## B\ntwo", segments[0].Content)
}

func TestSplit_EarlyBreak(t *testing.T) {
	count := 0
	for range New().Split("# A\n1\n# B\n2\n# C\n3") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestSplit_HeadersAreIndependentCopies(t *testing.T) {
	segments := New().Collect("# A\none\n## B\ntwo")
	require.Len(t, segments, 2)

	segments[0].Headers[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, segments[1].Headers)
}
