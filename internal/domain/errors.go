package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion indicates a blank or whitespace-only question
	ErrEmptyQuestion = errors.New("question cannot be empty")
	// ErrInvalidFileType indicates an unsupported upload content type
	ErrInvalidFileType = errors.New("only PDF files are allowed")
	// ErrFileTooLarge indicates the upload exceeds the configured size limit
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrQuotaExceeded indicates the daily token quota has been reached
	ErrQuotaExceeded = errors.New("daily token limit exceeded, try again tomorrow")
	// ErrIndexNotReady indicates no similarity index has been built yet
	ErrIndexNotReady = errors.New("no document processed, please upload a PDF first")
	// ErrNoExtractableText indicates no page of the PDF yielded any text
	ErrNoExtractableText = errors.New("no readable text found in PDF")
	// ErrNoChunks indicates chunking produced nothing usable
	ErrNoChunks = errors.New("no text chunks could be created from the document")
)

// RateLimitError is returned when the sliding-window limiter denies a
// request. RetryAfter carries the estimated seconds until capacity frees up.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, try again in %d seconds", e.RetryAfter)
}
