package domain

// PageText is one page of extracted text, 1-based page numbering.
type PageText struct {
	Page int
	Text string
}

// DocumentMetadata holds lightweight metadata derived during ingestion.
type DocumentMetadata struct {
	Pages     int    `json:"pages"`
	WordCount int    `json:"word_count"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	FileSize  int64  `json:"file_size"`
}

// DocumentRecord is the immutable result of extracting one uploaded PDF.
// Each ingestion produces a fresh record; the previous one is superseded,
// never merged, because the index is global and singular.
type DocumentRecord struct {
	Path     string
	Pages    []PageText
	Metadata DocumentMetadata
}

// Chunk is a page-tagged text segment, the unit indexed and retrieved.
// Text carries a visible "[Page N]" prefix so answers can cite provenance.
type Chunk struct {
	Text string
	Page int
}
