package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/lawgic-ai/docqa/internal/domain"
	"go.uber.org/zap"
)

// Embedder turns texts into vectors. Implemented by the Gemini client.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchResult is one retrieved chunk with its L2 distance to the query.
// Lower distance means more similar.
type SearchResult struct {
	Content  string
	Page     int
	Distance float64
}

// embedBatchSize bounds how many chunk texts go into one embedding call.
const embedBatchSize = 32

// VectorIndex is the process-wide persisted similarity index over document
// chunks. At most one logical index exists at a time: Replace swaps the whole
// chunk set in a single transaction. A reader-writer lock keeps searches from
// observing a half-replaced index.
type VectorIndex struct {
	db       *DB
	embedder Embedder
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewVectorIndex creates a vector index over the given database.
func NewVectorIndex(db *DB, embedder Embedder, logger *zap.Logger) *VectorIndex {
	return &VectorIndex{db: db, embedder: embedder, logger: logger}
}

// Replace embeds the chunks and atomically replaces the persisted index with
// them. The previous index is removed and the new one written inside one
// transaction, so readers see either the old index or the new one, never a
// mix.
func (v *VectorIndex) Replace(ctx context.Context, chunks []domain.Chunk) error {
	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}
		vecs, err := v.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunk batch: %w", err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		embeddings = append(embeddings, vecs...)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to remove previous index: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks (id, content, page, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ch := range chunks {
		if _, err := stmt.Exec(uuid.New().String(), ch.Text, ch.Page, encodeVector(embeddings[i])); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index replacement: %w", err)
	}

	v.logger.Info("similarity index replaced", zap.Int("chunks", len(chunks)))
	return nil
}

// Search embeds the query and returns the k nearest chunks by L2 distance,
// ascending. The read lock is held for the whole retrieval so a concurrent
// Replace cannot swap the index mid-scan.
func (v *VectorIndex) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	vecs, err := v.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := vecs[0]

	v.mu.RLock()
	defer v.mu.RUnlock()

	rows, err := v.db.QueryContext(ctx, `SELECT content, page, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan index: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var content string
		var page int
		var blob []byte
		if err := rows.Scan(&content, &page, &blob); err != nil {
			return nil, err
		}
		results = append(results, SearchResult{
			Content:  content,
			Page:     page,
			Distance: l2Distance(queryVec, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Ready reports whether a built index exists.
func (v *VectorIndex) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var count int
	if err := v.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		v.logger.Warn("failed to count index rows", zap.Error(err))
		return false
	}
	return count > 0
}

// l2Distance computes Euclidean distance between two vectors. Mismatched
// dimensions compare only the shared prefix; that only happens when the
// embedding model configuration changed under a persisted index.
func l2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
