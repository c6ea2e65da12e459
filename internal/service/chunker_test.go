package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lawgic-ai/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// letters returns n characters of cycling alphabet with no split boundaries,
// forcing raw character cuts.
func letters(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	return b.String()
}

func stripMarker(t *testing.T, chunk domain.Chunk) string {
	t.Helper()
	marker := pageMarker(chunk.Page)
	require.True(t, strings.HasPrefix(chunk.Text, marker), "chunk must carry its page marker")
	return strings.TrimPrefix(chunk.Text, marker)
}

func TestChunkPagesTagsAndPrefixes(t *testing.T) {
	chunker := NewChunker(1000, 150, 10, 100, zap.NewNop())

	chunks := chunker.ChunkPages([]domain.PageText{
		{Page: 1, Text: "This agreement commences on the first day of June."},
		{Page: 3, Text: "Either party may terminate with thirty days notice."},
	})

	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "[Page 1]\n"))
	assert.Equal(t, 1, chunks[0].Page)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "[Page 3]\n"))
	assert.Equal(t, 3, chunks[1].Page)
}

func TestChunkOverlapBetweenConsecutiveChunks(t *testing.T) {
	chunker := NewChunker(100, 20, 10, 100, zap.NewNop())

	chunks := chunker.ChunkPages([]domain.PageText{{Page: 1, Text: letters(250)}})
	require.GreaterOrEqual(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prev := stripMarker(t, chunks[i-1])
		next := stripMarker(t, chunks[i])
		require.GreaterOrEqual(t, len(prev), 20)
		require.GreaterOrEqual(t, len(next), 20)
		assert.Equal(t, prev[len(prev)-20:], next[:20],
			"tail of chunk %d must prefix chunk %d", i-1, i)
	}
}

func TestChunkPrefersSentenceBoundaries(t *testing.T) {
	chunker := NewChunker(100, 20, 10, 100, zap.NewNop())

	sentence := "The lessee shall maintain the premises in good order. "
	text := strings.Repeat(sentence, 6)

	chunks := chunker.ChunkPages([]domain.PageText{{Page: 1, Text: text}})
	require.GreaterOrEqual(t, len(chunks), 2)

	first := stripMarker(t, chunks[0])
	assert.True(t, strings.HasSuffix(first, ". "), "cut should land after a sentence end, got %q", first)
}

func TestChunkCountHardCap(t *testing.T) {
	chunker := NewChunker(100, 20, 10, 7, zap.NewNop())

	pages := []domain.PageText{
		{Page: 1, Text: letters(2000)},
		{Page: 2, Text: letters(2000)},
	}

	chunks := chunker.ChunkPages(pages)
	assert.Len(t, chunks, 7, "cap must yield exactly the cap, never more")

	// Feeding even more text still yields exactly the cap.
	pages = append(pages, domain.PageText{Page: 3, Text: letters(5000)})
	assert.Len(t, chunker.ChunkPages(pages), 7)
}

func TestChunkDropsLowSignalFragments(t *testing.T) {
	chunker := NewChunker(1000, 150, 100, 100, zap.NewNop())

	chunks := chunker.ChunkPages([]domain.PageText{
		{Page: 1, Text: "short"},
		{Page: 2, Text: "   \n\t  "},
	})

	assert.Empty(t, chunks)
}

func TestChunkCutsNeverSplitRunes(t *testing.T) {
	chunker := NewChunker(101, 20, 10, 100, zap.NewNop())

	pages := []domain.PageText{
		// Two-byte runes with no separators force the raw fallback cut.
		{Page: 1, Text: strings.Repeat("§", 300)},
		// Three-byte runes land the window edge mid-rune at different offsets.
		{Page: 2, Text: "a" + strings.Repeat("条款内容", 100)},
	}

	chunks := chunker.ChunkPages(pages)
	require.GreaterOrEqual(t, len(chunks), 4)

	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text), "chunk %d must stay valid UTF-8", i)
	}
}

func TestChunkSinglePieceForShortPage(t *testing.T) {
	chunker := NewChunker(1000, 150, 10, 100, zap.NewNop())

	text := "A single page well under the chunk size."
	chunks := chunker.ChunkPages([]domain.PageText{{Page: 5, Text: text}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "[Page 5]\n"+text, chunks[0].Text)
}
