package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/lawgic-ai/docqa/internal/config"
	"github.com/lawgic-ai/docqa/internal/domain"
	"go.uber.org/zap"
)

// Extractor turns a persisted upload into per-page text plus metadata.
type Extractor interface {
	Extract(path string) (*domain.DocumentRecord, error)
}

// IndexBuilder replaces the persisted similarity index with a new chunk set.
type IndexBuilder interface {
	Replace(ctx context.Context, chunks []domain.Chunk) error
}

// IngestService orchestrates the ingestion pipeline: validate and persist the
// upload on the request path, then extract, chunk, embed and index in the
// background, publishing progress through the ProgressTracker.
type IngestService struct {
	cfg       *config.Config
	tracker   *ProgressTracker
	chunker   *Chunker
	extractor Extractor
	index     IndexBuilder
	logger    *zap.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	cfg *config.Config,
	tracker *ProgressTracker,
	chunker *Chunker,
	extractor Extractor,
	index IndexBuilder,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		cfg:       cfg,
		tracker:   tracker,
		chunker:   chunker,
		extractor: extractor,
		index:     index,
		logger:    logger,
	}
}

// UploadDocument validates and persists an uploaded PDF, registers a task,
// and starts background processing. It returns the task ID immediately;
// callers poll the tracker for completion. Validation failures happen before
// any task exists.
func (s *IngestService) UploadDocument(file *multipart.FileHeader) (string, error) {
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		return "", domain.ErrInvalidFileType
	}
	if file.Size == 0 {
		return "", fmt.Errorf("%w: file is empty", domain.ErrInvalidFileType)
	}
	if file.Size > s.cfg.MaxFileSizeBytes() {
		return "", fmt.Errorf("%w of %dMB", domain.ErrFileTooLarge, s.cfg.Ingest.MaxFileSizeMB)
	}

	if err := os.MkdirAll(s.cfg.Storage.UploadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	taskID := uuid.New().String()
	uploadPath := filepath.Join(s.cfg.Storage.UploadsDir, taskID+".pdf")

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(uploadPath)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	s.logger.Info("PDF saved",
		zap.String("task_id", taskID),
		zap.String("path", uploadPath),
		zap.Int64("size", file.Size),
	)

	s.tracker.Create(taskID)
	s.tracker.Update(taskID, 5, "PDF uploaded, queued for processing...")

	// Fire-and-continue: the submitting caller gets the task ID now and
	// polls for the outcome. A failed stage leaves its partial artifacts
	// (the saved upload) in place for manual inspection.
	go s.process(context.Background(), taskID, uploadPath)

	return taskID, nil
}

// process runs the pipeline stages for one upload. Any stage error moves the
// task to its terminal error state and aborts the rest.
func (s *IngestService) process(ctx context.Context, taskID, uploadPath string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ingestion panic", zap.String("task_id", taskID), zap.Any("panic", r))
			s.tracker.Fail(taskID, fmt.Sprintf("processing failed: %v", r))
		}
	}()

	s.tracker.Update(taskID, 15, "Extracting text...")
	doc, err := s.extractor.Extract(uploadPath)
	if err != nil {
		s.logger.Error("extraction failed", zap.String("task_id", taskID), zap.Error(err))
		s.tracker.Fail(taskID, err.Error())
		return
	}

	s.tracker.Update(taskID, 50, fmt.Sprintf("Extracted %d pages", doc.Metadata.Pages))
	s.tracker.AttachMetadata(taskID, doc.Metadata)

	s.tracker.Update(taskID, 55, "Creating chunks...")
	chunks := s.chunker.ChunkPages(doc.Pages)
	if len(chunks) == 0 {
		s.tracker.Fail(taskID, domain.ErrNoChunks.Error())
		return
	}

	s.tracker.Update(taskID, 65, "Creating embeddings...")
	if err := s.index.Replace(ctx, chunks); err != nil {
		s.logger.Error("index build failed", zap.String("task_id", taskID), zap.Error(err))
		s.tracker.Fail(taskID, fmt.Sprintf("processing failed: %v", err))
		return
	}

	s.tracker.Update(taskID, 85, "Saving index...")
	s.tracker.Done(taskID, "Ready for questions!")

	s.logger.Info("ingestion complete",
		zap.String("task_id", taskID),
		zap.Int("pages", doc.Metadata.Pages),
		zap.Int("chunks", len(chunks)),
	)
}
