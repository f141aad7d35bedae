package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multirag/internal/domain"
)

func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d is here. ", i)
	}
	return b.String()
}

// sharedBoundary returns how many leading bytes of b also end a.
func sharedBoundary(a, b string) int {
	n := len(b)
	if len(a) < n {
		n = len(a)
	}
	for k := n; k > 0; k-- {
		if strings.HasSuffix(a, b[:k]) {
			return k
		}
	}
	return 0
}

func TestNewRecursiveChunker(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := NewRecursiveChunker(0, -1)
		assert.Equal(t, DefaultMaxChars, c.maxChars)
		assert.Equal(t, 0, c.overlapChars)
	})

	t.Run("overlap exceeds size", func(t *testing.T) {
		c := NewRecursiveChunker(100, 150)
		assert.Less(t, c.overlapChars, c.maxChars)
	})
}

func TestChunk_Empty(t *testing.T) {
	c := NewRecursiveChunker(300, 50)
	for _, content := range []string{"", "   \n\n\t "} {
		chunks, err := c.Chunk(domain.Document{ID: "doc", Content: content})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestChunk_SmallDocument(t *testing.T) {
	c := NewRecursiveChunker(300, 50)
	chunks, err := c.Chunk(domain.Document{ID: "doc", Content: "  The capital of France is Paris.\n"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "The capital of France is Paris.", chunks[0].Text)
	assert.Equal(t, "doc:0", chunks[0].ChunkID)
	assert.Equal(t, "doc", chunks[0].DocumentID)
	require.NotNil(t, chunks[0].Span)
	assert.Equal(t, 2, chunks[0].Span.Offset)
	assert.Equal(t, 0, chunks[0].Span.StartPage)
}

func TestChunk_Deterministic(t *testing.T) {
	c := NewRecursiveChunker(120, 30)
	doc := domain.Document{ID: "doc", Content: sentences(40) + "\n\n" + strings.Repeat("word ", 80)}

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunk_SizeBound(t *testing.T) {
	inputs := map[string]string{
		"sentences":  sentences(50),
		"paragraphs": strings.Repeat("A short paragraph of text.\n\n", 30),
		"no spaces":  strings.Repeat("x", 1000),
		"unicode":    strings.Repeat("भारत एक विशाल देश है। ", 40),
		"mixed":      sentences(5) + "\n" + strings.Repeat("y", 400) + "\n\n" + sentences(5),
	}
	c := NewRecursiveChunker(100, 20)
	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			chunks, err := c.Chunk(domain.Document{ID: "doc", Content: content})
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			for i, ch := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 100, "chunk %d", i)
				assert.NotEmpty(t, strings.TrimSpace(ch.Text))
				assert.Equal(t, i, ch.Index)
			}
		})
	}
}

func TestChunk_Overlap(t *testing.T) {
	inputs := map[string]string{
		"sentences":  sentences(30),
		"no spaces":  strings.Repeat("x", 250),
		"paragraphs": strings.Repeat("alpha ", 16) + "end.\n\n" + strings.Repeat("beta ", 19) + "end.",
	}
	c := NewRecursiveChunker(100, 30)
	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			chunks, err := c.Chunk(domain.Document{ID: "doc", Content: content})
			require.NoError(t, err)
			require.Greater(t, len(chunks), 1)
			for i := 0; i+1 < len(chunks); i++ {
				shared := sharedBoundary(chunks[i].Text, chunks[i+1].Text)
				assert.Greater(t, shared, 0, "chunks %d and %d share nothing", i, i+1)
			}
		})
	}
}

func TestChunk_OverlapAcrossLongWhitespaceRuns(t *testing.T) {
	words := make([]string, 80)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	content := strings.Join(words, "      ")

	chunks, err := NewRecursiveChunker(20, 5).Chunk(domain.Document{ID: "doc", Content: content})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i := 0; i+1 < len(chunks); i++ {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunks[i+1].Text), 20)
		shared := sharedBoundary(chunks[i].Text, chunks[i+1].Text)
		assert.Greater(t, shared, 0, "chunks %q and %q share nothing", chunks[i].Text, chunks[i+1].Text)
	}
}

func TestChunk_PrefersParagraphBoundary(t *testing.T) {
	p1 := strings.Repeat("alpha ", 16) + "end."
	p2 := strings.Repeat("beta ", 19) + "end."
	c := NewRecursiveChunker(150, 20)

	chunks, err := c.Chunk(domain.Document{ID: "doc", Content: p1 + "\n\n" + p2})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0].Text)
	assert.True(t, strings.HasSuffix(chunks[1].Text, p2))
}

func TestChunk_SentenceBoundaries(t *testing.T) {
	c := NewRecursiveChunker(100, 30)
	chunks, err := c.Chunk(domain.Document{ID: "doc", Content: sentences(30)})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.True(t, strings.HasPrefix(ch.Text, "Sentence"), ch.Text)
		assert.True(t, strings.HasSuffix(ch.Text, "here."), ch.Text)
	}
}

func TestChunk_PaginatedSpans(t *testing.T) {
	pages := []domain.Page{
		{Number: 1, Text: sentences(3)},
		{Number: 2, Text: sentences(3)},
		{Number: 3, Text: sentences(3)},
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	doc := domain.Document{
		ID:      "pdf",
		Format:  domain.FormatPaginated,
		Pages:   pages,
		Content: strings.Join(texts, domain.PageSeparator),
	}

	chunks, err := NewRecursiveChunker(120, 30).Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 1, chunks[0].Span.StartPage)
	assert.Equal(t, 3, chunks[len(chunks)-1].Span.EndPage)
	crossing := false
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.Span.StartPage, ch.Span.EndPage)
		if ch.Span.StartPage != ch.Span.EndPage {
			crossing = true
		}
	}
	assert.True(t, crossing, "expected a chunk spanning a page boundary")
}

func TestSplitKeep(t *testing.T) {
	parts := splitKeep("One. Two! Three? Four", []string{". ", "! ", "? "})
	assert.Equal(t, []string{"One. ", "Two! ", "Three? ", "Four"}, parts)
	assert.Equal(t, "One. Two! Three? Four", strings.Join(parts, ""))
}
