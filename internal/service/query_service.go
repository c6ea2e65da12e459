package service

import (
	"context"
	"strings"

	"github.com/lawgic-ai/docqa/internal/config"
	"github.com/lawgic-ai/docqa/internal/domain"
	"github.com/lawgic-ai/docqa/internal/repository"
	"go.uber.org/zap"
)

// snippetLength bounds citation excerpts shown to the user.
const snippetLength = 120

// IndexSearcher is the retrieval side of the similarity index.
type IndexSearcher interface {
	Ready() bool
	Search(ctx context.Context, query string, k int) ([]repository.SearchResult, error)
}

// Generator produces an answer from retrieved context and a question.
type Generator interface {
	Generate(ctx context.Context, contextDocs []string, question string) (string, error)
}

// QueryService orchestrates question answering: cache lookup, quota and rate
// checks, retrieval, generation, usage accounting and cache write — in that
// order, so a rejected question never incurs upstream cost.
type QueryService struct {
	cfg       *config.Config
	cache     *ResponseCache
	ledger    *UsageLedger
	gate      *RateGate
	index     IndexSearcher
	generator Generator
	logger    *zap.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(
	cfg *config.Config,
	cache *ResponseCache,
	ledger *UsageLedger,
	gate *RateGate,
	index IndexSearcher,
	generator Generator,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		cfg:       cfg,
		cache:     cache,
		ledger:    ledger,
		gate:      gate,
		index:     index,
		generator: generator,
		logger:    logger,
	}
}

// Ask answers a question against the current document index.
func (s *QueryService) Ask(ctx context.Context, question string) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, domain.ErrEmptyQuestion
	}

	if s.cfg.Cache.Enabled {
		if answer, ok := s.cache.Get(question, ""); ok {
			answer.Cached = true
			return answer, nil
		}
	}

	// Quota before the rate gate: an over-quota day must not consume a
	// window slot.
	if s.ledger.OverDailyQuota() {
		return domain.Answer{}, domain.ErrQuotaExceeded
	}

	if !s.gate.Admit() {
		retry := int(s.gate.TimeUntilReset().Seconds())
		if retry < 1 {
			retry = 1
		}
		return domain.Answer{}, &domain.RateLimitError{RetryAfter: retry}
	}

	// The cooldown only delays; it never rejects.
	if err := s.gate.WaitCooldown(ctx); err != nil {
		return domain.Answer{}, err
	}

	if !s.index.Ready() {
		return domain.Answer{}, domain.ErrIndexNotReady
	}

	retrieved, err := s.index.Search(ctx, question, s.cfg.Retrieval.TopK)
	if err != nil {
		return domain.Answer{}, err
	}

	docs := make([]repository.SearchResult, 0, len(retrieved))
	for _, r := range retrieved {
		if r.Distance < s.cfg.Retrieval.SimilarityThreshold {
			docs = append(docs, r)
		}
	}
	// A restrictive threshold must not leave a question unanswerable; fall
	// back to the closest few matches.
	if len(docs) == 0 {
		docs = retrieved
		if len(docs) > s.cfg.Retrieval.FallbackK {
			docs = docs[:s.cfg.Retrieval.FallbackK]
		}
	}

	contextDocs := make([]string, 0, len(docs))
	inputTokens := wordCount(question)
	for _, d := range docs {
		contextDocs = append(contextDocs, d.Content)
		inputTokens += wordCount(d.Content)
	}

	answerText, err := s.generator.Generate(ctx, contextDocs, question)
	if err != nil {
		s.logger.Error("answer generation failed", zap.Error(err))
		return domain.Answer{}, err
	}

	// Whitespace word counts stand in for tokenizer counts. The estimate is
	// never reconciled against billed usage, so ledger totals are
	// directionally correct rather than exact.
	totalTokens := inputTokens + wordCount(answerText)
	s.ledger.Record(totalTokens)

	answer := domain.Answer{
		Answer:     answerText,
		References: buildReferences(retrieved),
		TokensUsed: totalTokens,
		Cached:     false,
	}

	if s.cfg.Cache.Enabled {
		s.cache.Put(question, "", answer)
	}

	return answer, nil
}

// buildReferences derives up to three citation snippets from the retrieved
// chunks, page marker stripped and excerpt truncated for display.
func buildReferences(results []repository.SearchResult) []domain.Reference {
	refs := make([]domain.Reference, 0, 3)
	for _, r := range results {
		if len(refs) == 3 {
			break
		}
		snippet := strings.TrimSpace(stripPageMarker(r.Content, r.Page))
		if r.Page == 0 || snippet == "" {
			continue
		}
		if len(snippet) > snippetLength {
			snippet = snippet[:floorRune(snippet, snippetLength)] + "..."
		}
		refs = append(refs, domain.Reference{Page: r.Page, Snippet: snippet})
	}
	return refs
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
