package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lawgic-ai/docqa/internal/domain"
	"go.uber.org/zap"
)

// boundarySeparators is the break preference ladder: paragraph, line,
// sentence, word. Raw characters are the implicit last resort.
var boundarySeparators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits per-page extracted text into overlapping, page-tagged
// segments. It is deterministic and stateless apart from its configuration.
type Chunker struct {
	chunkSize int
	overlap   int
	minChars  int
	maxChunks int
	logger    *zap.Logger
}

// NewChunker creates a chunker. chunkSize bounds each segment's length in
// characters, overlap is carried between consecutive segments of one page,
// minChars filters out low-signal fragments, and maxChunks hard-caps the
// total segment count.
func NewChunker(chunkSize, overlap, minChars, maxChunks int, logger *zap.Logger) *Chunker {
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		minChars:  minChars,
		maxChunks: maxChunks,
		logger:    logger,
	}
}

// ChunkPages turns ordered (page, text) pairs into page-tagged chunks. Each
// retained chunk is prefixed with a visible page marker so downstream answer
// generation can cite provenance. Once maxChunks is reached the remaining
// text is silently dropped — a cost ceiling, not an error — and the
// truncation is logged.
func (c *Chunker) ChunkPages(pages []domain.PageText) []domain.Chunk {
	chunks := make([]domain.Chunk, 0)
	truncated := false

	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, piece := range c.splitPage(page.Text) {
			if len(strings.TrimSpace(piece)) < c.minChars {
				continue
			}
			if len(chunks) >= c.maxChunks {
				truncated = true
				break
			}
			chunks = append(chunks, domain.Chunk{
				Text: pageMarker(page.Page) + piece,
				Page: page.Page,
			})
		}
		if truncated {
			break
		}
	}

	if truncated {
		c.logger.Info("chunk cap reached, dropping remaining text",
			zap.Int("max_chunks", c.maxChunks),
		)
	}

	return chunks
}

// splitPage slices one page's text into windows of at most chunkSize
// characters. Each window tries to end at the best available boundary —
// paragraph, then line, then sentence, then word — falling back to a raw
// character cut. Consecutive windows share the trailing overlap characters.
func (c *Chunker) splitPage(text string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	var pieces []string
	start := 0
	for start < len(text) {
		end := start + c.chunkSize
		if end >= len(text) {
			pieces = append(pieces, text[start:])
			break
		}

		cut := c.findBreak(text, start, end)
		pieces = append(pieces, text[start:cut])

		next := floorRune(text, cut-c.overlap)
		if next <= start {
			// A boundary cut this early would stall the scan; advance past it.
			next = cut
		}
		start = next
	}
	return pieces
}

// findBreak returns the cut position for a window [start, end), preferring
// the latest occurrence of the strongest separator. The cut must leave more
// than the overlap behind, otherwise the next window could not advance. The
// raw fallback is aligned to a rune start so a multi-byte character is never
// split across chunks.
func (c *Chunker) findBreak(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range boundarySeparators {
		idx := strings.LastIndex(window, sep)
		if idx > c.overlap {
			return start + idx + len(sep)
		}
	}
	return floorRune(text, end)
}

// floorRune backs a byte offset up to the nearest rune start. Callers must
// pass an offset strictly inside the string.
func floorRune(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// pageMarker is the visible provenance prefix carried on every chunk.
func pageMarker(page int) string {
	return fmt.Sprintf("[Page %d]\n", page)
}

// stripPageMarker removes the provenance prefix for user-facing snippets.
func stripPageMarker(text string, page int) string {
	return strings.Replace(text, pageMarker(page), "", 1)
}
