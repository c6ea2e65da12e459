package service

import (
	"sync"
	"time"

	"github.com/lawgic-ai/docqa/internal/domain"
	"go.uber.org/zap"
)

const (
	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// UsageLedger tracks estimated token consumption per calendar day and month
// and enforces a hard daily quota. Counters live in memory only; a new day or
// month key simply starts at zero, so rollover needs no sweep.
type UsageLedger struct {
	mu         sync.Mutex
	daily      map[string]int
	monthly    map[string]int
	total      int64
	lastUpdate time.Time
	dailyCap   int
	logger     *zap.Logger

	now func() time.Time
}

// NewUsageLedger creates an empty ledger with the given daily token cap.
func NewUsageLedger(dailyCap int, logger *zap.Logger) *UsageLedger {
	return &UsageLedger{
		daily:    make(map[string]int),
		monthly:  make(map[string]int),
		dailyCap: dailyCap,
		logger:   logger,
		now:      time.Now,
	}
}

// Record adds tokens to today's and this month's counters and the lifetime
// total. Tokens are an append-only running sum; negative adjustments are not
// supported and are ignored.
func (l *UsageLedger) Record(tokens int) {
	if tokens < 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	day := now.Format(dayKeyLayout)
	month := now.Format(monthKeyLayout)

	l.daily[day] += tokens
	l.monthly[month] += tokens
	l.total += int64(tokens)
	l.lastUpdate = now

	l.logger.Info("recorded token usage",
		zap.Int("tokens", tokens),
		zap.Int("daily_total", l.daily[day]),
		zap.Int("monthly_total", l.monthly[month]),
	)
}

// Stats returns a snapshot of current usage.
func (l *UsageLedger) Stats() domain.UsageStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return domain.UsageStats{
		DailyTokens:   l.daily[now.Format(dayKeyLayout)],
		MonthlyTokens: l.monthly[now.Format(monthKeyLayout)],
		TotalTokens:   l.total,
		LastUpdate:    l.lastUpdate,
	}
}

// OverDailyQuota reports whether today's counter has reached the daily cap.
// Callers must check this before admitting a query so an over-quota day fails
// fast without touching the rate gate or the upstream model.
func (l *UsageLedger) OverDailyQuota() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.daily[l.now().Format(dayKeyLayout)] >= l.dailyCap
}

// DailyCap returns the configured daily token limit.
func (l *UsageLedger) DailyCap() int {
	return l.dailyCap
}
