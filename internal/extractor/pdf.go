package extractor

import (
	"fmt"
	"os"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/lawgic-ai/docqa/internal/domain"
	"go.uber.org/zap"
)

// PDFExtractor extracts per-page text from a PDF file. Unreadable pages are
// skipped with a warning; extraction only fails outright when no page yields
// any text. Processing is capped at maxPages to bound downstream cost.
type PDFExtractor struct {
	maxPages int
	logger   *zap.Logger
}

// NewPDFExtractor creates an extractor capped at maxPages pages per document.
func NewPDFExtractor(maxPages int, logger *zap.Logger) *PDFExtractor {
	return &PDFExtractor{maxPages: maxPages, logger: logger}
}

// Extract reads the PDF at path and returns its document record: ordered
// (page, text) pairs plus derived metadata.
func (e *PDFExtractor) Extract(path string) (*domain.DocumentRecord, error) {
	reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	total := reader.NumPage()
	limit := total
	if limit > e.maxPages {
		limit = e.maxPages
	}

	var pages []domain.PageText
	for num := 1; num <= limit; num++ {
		text, err := e.pageText(reader, num)
		if err != nil {
			e.logger.Warn("failed to extract text from page",
				zap.Int("page", num),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, domain.PageText{Page: num, Text: text})
	}

	if total > e.maxPages {
		e.logger.Info("limited extraction to page cap",
			zap.Int("max_pages", e.maxPages),
			zap.Int("total_pages", total),
		)
	}

	if len(pages) == 0 {
		return nil, domain.ErrNoExtractableText
	}

	meta := domain.DocumentMetadata{
		Pages: len(pages),
	}
	for _, p := range pages {
		meta.WordCount += len(strings.Fields(p.Text))
	}
	meta.Title, meta.Author = docInfo(reader)
	if fi, err := os.Stat(path); err == nil {
		meta.FileSize = fi.Size()
	}

	return &domain.DocumentRecord{
		Path:     path,
		Pages:    pages,
		Metadata: meta,
	}, nil
}

// pageText extracts one page's plain text. The pdf library panics on some
// malformed content streams, so the call is isolated behind a recover.
func (e *PDFExtractor) pageText(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page content panic: %v", r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", fmt.Errorf("page object is null")
	}
	return page.GetPlainText(nil)
}

// docInfo reads best-effort title and author from the PDF Info dictionary.
// Malformed trailers are common enough that failures here are silent.
func docInfo(reader *pdf.Reader) (title, author string) {
	defer func() {
		recover()
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return "", ""
	}
	return info.Key("Title").Text(), info.Key("Author").Text()
}
