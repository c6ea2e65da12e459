package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/lawgic-ai/docqa/internal/config"
	"github.com/lawgic-ai/docqa/internal/domain"
	"github.com/lawgic-ai/docqa/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSearcher struct {
	ready     bool
	results   []repository.SearchResult
	err       error
	lastK     int
	lastQuery string
}

func (f *fakeSearcher) Ready() bool { return f.ready }

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]repository.SearchResult, error) {
	f.lastQuery = query
	f.lastK = k
	return f.results, f.err
}

type fakeGenerator struct {
	answer   string
	err      error
	lastDocs []string
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, contextDocs []string, question string) (string, error) {
	f.calls++
	f.lastDocs = contextDocs
	return f.answer, f.err
}

func queryTestConfig() *config.Config {
	return &config.Config{
		Retrieval: config.RetrievalConfig{TopK: 5, SimilarityThreshold: 1.2, FallbackK: 3},
		Cache:     config.CacheConfig{Enabled: true, TTL: time.Hour},
	}
}

type queryFixture struct {
	svc       *QueryService
	cache     *ResponseCache
	ledger    *UsageLedger
	gate      *RateGate
	searcher  *fakeSearcher
	generator *fakeGenerator
}

func newQueryFixture(searcher *fakeSearcher, generator *fakeGenerator) *queryFixture {
	logger := zap.NewNop()
	cfg := queryTestConfig()
	f := &queryFixture{
		cache:     NewResponseCache(cfg.Cache.TTL, logger),
		ledger:    NewUsageLedger(50000, logger),
		gate:      NewRateGate(100, time.Minute, time.Millisecond, logger),
		searcher:  searcher,
		generator: generator,
	}
	f.svc = NewQueryService(cfg, f.cache, f.ledger, f.gate, searcher, generator, logger)
	return f
}

func leaseResults() []repository.SearchResult {
	return []repository.SearchResult{
		{Content: "[Page 2]\nRent is payable monthly in advance.", Page: 2, Distance: 0.4},
		{Content: "[Page 5]\nThe tenant shall not sublet without consent.", Page: 5, Distance: 0.7},
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	f := newQueryFixture(&fakeSearcher{ready: true}, &fakeGenerator{})

	_, err := f.svc.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Zero(t, f.generator.calls)
}

func TestAskRequiresReadyIndex(t *testing.T) {
	f := newQueryFixture(&fakeSearcher{ready: false}, &fakeGenerator{})

	_, err := f.svc.Ask(context.Background(), "When is rent due?")
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
}

func TestAskAnswersWithReferencesAndUsage(t *testing.T) {
	searcher := &fakeSearcher{ready: true, results: leaseResults()}
	generator := &fakeGenerator{answer: "Rent is due monthly in advance."}
	f := newQueryFixture(searcher, generator)

	answer, err := f.svc.Ask(context.Background(), "When is rent due?")
	require.NoError(t, err)

	assert.Equal(t, generator.answer, answer.Answer)
	assert.False(t, answer.Cached)
	assert.Equal(t, 5, searcher.lastK)
	assert.Len(t, generator.lastDocs, 2, "both results are under the distance threshold")

	require.Len(t, answer.References, 2)
	assert.Equal(t, 2, answer.References[0].Page)
	assert.Equal(t, "Rent is payable monthly in advance.", answer.References[0].Snippet)
	assert.NotContains(t, answer.References[1].Snippet, "[Page")

	// words(question) + words(retrieved content, markers included) + words(answer)
	wantTokens := 4 + (8 + 9) + 6
	assert.Equal(t, wantTokens, answer.TokensUsed)

	stats := f.ledger.Stats()
	assert.Equal(t, wantTokens, stats.DailyTokens)
}

func TestAskFallsBackWhenThresholdFiltersEverything(t *testing.T) {
	results := []repository.SearchResult{
		{Content: "[Page 1]\nDefinitions of the parties.", Page: 1, Distance: 2.0},
		{Content: "[Page 2]\nRent schedule.", Page: 2, Distance: 2.1},
		{Content: "[Page 3]\nTermination clauses.", Page: 3, Distance: 2.2},
		{Content: "[Page 4]\nGoverning law.", Page: 4, Distance: 2.3},
	}
	searcher := &fakeSearcher{ready: true, results: results}
	generator := &fakeGenerator{answer: "See the rent schedule."}
	f := newQueryFixture(searcher, generator)

	_, err := f.svc.Ask(context.Background(), "What does the lease say?")
	require.NoError(t, err)
	assert.Len(t, generator.lastDocs, 3, "fallback keeps only the closest matches")
	assert.Contains(t, generator.lastDocs[0], "Definitions")
}

func TestAskServesSecondCallFromCache(t *testing.T) {
	searcher := &fakeSearcher{ready: true, results: leaseResults()}
	generator := &fakeGenerator{answer: "Rent is due monthly."}
	f := newQueryFixture(searcher, generator)

	first, err := f.svc.Ask(context.Background(), "When is rent due?")
	require.NoError(t, err)
	spent := f.ledger.Stats().DailyTokens

	second, err := f.svc.Ask(context.Background(), "  when is RENT due?  ")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, generator.calls, "cache hit must not reach the model")
	assert.Equal(t, spent, f.ledger.Stats().DailyTokens, "cache hit spends no tokens")
}

func TestAskFailsFastOverDailyQuota(t *testing.T) {
	searcher := &fakeSearcher{ready: true, results: leaseResults()}
	generator := &fakeGenerator{answer: "irrelevant"}
	f := newQueryFixture(searcher, generator)
	f.ledger.Record(f.ledger.DailyCap())

	_, err := f.svc.Ask(context.Background(), "When is rent due?")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Zero(t, generator.calls)
}

func TestAskReportsRetryAfterWhenRateLimited(t *testing.T) {
	logger := zap.NewNop()
	cfg := queryTestConfig()
	cfg.Cache.Enabled = false
	gate := NewRateGate(1, time.Minute, time.Millisecond, logger)
	searcher := &fakeSearcher{ready: true, results: leaseResults()}
	generator := &fakeGenerator{answer: "ok"}
	svc := NewQueryService(cfg, NewResponseCache(time.Hour, logger), NewUsageLedger(50000, logger), gate, searcher, generator, logger)

	_, err := svc.Ask(context.Background(), "first question")
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), "second question")
	var rateErr *domain.RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.GreaterOrEqual(t, rateErr.RetryAfter, 1)
	assert.Equal(t, 1, generator.calls)
}

func TestAskPropagatesGenerationFailure(t *testing.T) {
	searcher := &fakeSearcher{ready: true, results: leaseResults()}
	generator := &fakeGenerator{err: errors.New("model unavailable")}
	f := newQueryFixture(searcher, generator)

	_, err := f.svc.Ask(context.Background(), "When is rent due?")
	require.Error(t, err)
	assert.Zero(t, f.ledger.Stats().DailyTokens, "failed generation spends no tokens")
	_, ok := f.cache.Get("When is rent due?", "")
	assert.False(t, ok, "failed generation is not cached")
}

func TestAskTruncatesLongSnippets(t *testing.T) {
	long := "[Page 9]\n"
	for i := 0; i < 40; i++ {
		long += "covenant "
	}
	searcher := &fakeSearcher{ready: true, results: []repository.SearchResult{
		{Content: long, Page: 9, Distance: 0.1},
	}}
	f := newQueryFixture(searcher, &fakeGenerator{answer: "ok"})

	answer, err := f.svc.Ask(context.Background(), "What covenants apply?")
	require.NoError(t, err)
	require.Len(t, answer.References, 1)
	assert.Len(t, answer.References[0].Snippet, snippetLength+len("..."))
}

func TestAskSnippetTruncationKeepsValidUTF8(t *testing.T) {
	// An odd leading byte pushes the truncation point into the middle of a
	// three-byte rune.
	content := "[Page 3]\na" + strings.Repeat("条款内容", 50)
	searcher := &fakeSearcher{ready: true, results: []repository.SearchResult{
		{Content: content, Page: 3, Distance: 0.1},
	}}
	f := newQueryFixture(searcher, &fakeGenerator{answer: "ok"})

	answer, err := f.svc.Ask(context.Background(), "第三条是什么？")
	require.NoError(t, err)
	require.Len(t, answer.References, 1)

	snippet := answer.References[0].Snippet
	assert.True(t, utf8.ValidString(snippet))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.LessOrEqual(t, len(snippet), snippetLength+len("..."))
}
