package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/lawgic-ai/docqa/internal/domain"
	"go.uber.org/zap"
)

type cacheEntry struct {
	answer   domain.Answer
	storedAt time.Time
}

// ResponseCache is a TTL-keyed in-memory cache of prior answers, keyed by a
// digest of the normalized question text plus an optional document
// fingerprint. Hash collisions are treated as hits; the key is not used for
// anything security-sensitive.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	logger  *zap.Logger

	now func() time.Time
}

// NewResponseCache creates an empty cache with the given TTL.
func NewResponseCache(ttl time.Duration, logger *zap.Logger) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func cacheKey(question, docHash string) string {
	normalized := strings.ToLower(strings.TrimSpace(question)) + "_" + docHash
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached answer for a question, if present and unexpired.
// Expiry is checked on read; a stale entry is purged at that moment rather
// than by a background sweep.
func (c *ResponseCache) Get(question, docHash string) (domain.Answer, bool) {
	key := cacheKey(question, docHash)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.Answer{}, false
	}
	if c.now().Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return domain.Answer{}, false
	}

	c.logger.Info("cache hit", zap.String("question", truncate(question, 50)))
	return entry.answer, true
}

// Put stores an answer for a question.
func (c *ResponseCache) Put(question, docHash string, answer domain.Answer) {
	key := cacheKey(question, docHash)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{answer: answer, storedAt: c.now()}
}

// Clear removes all entries unconditionally.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
	c.logger.Info("response cache cleared")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
