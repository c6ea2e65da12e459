package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateGate combines a sliding-window request limiter with a minimum-interval
// cooldown between consecutive upstream calls. The window check is a hard
// admit/deny decision; the cooldown only delays, it never rejects.
type RateGate struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	stamps   []time.Time
	cooldown *rate.Limiter
	logger   *zap.Logger

	now func() time.Time
}

// NewRateGate creates a rate gate admitting at most max requests per window,
// with a mandatory cooldown gap between successive upstream calls.
func NewRateGate(max int, window, cooldown time.Duration, logger *zap.Logger) *RateGate {
	return &RateGate{
		window:   window,
		max:      max,
		cooldown: rate.NewLimiter(rate.Every(cooldown), 1),
		logger:   logger,
		now:      time.Now,
	}
}

// Admit evicts timestamps older than the window, then admits the caller if
// capacity remains. The whole decision happens under one lock so two
// concurrent callers cannot both observe the same free slot.
func (g *RateGate) Admit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)

	if len(g.stamps) < g.max {
		g.stamps = append(g.stamps, now)
		return true
	}

	g.logger.Warn("rate limit reached",
		zap.Int("max_requests", g.max),
		zap.Duration("window", g.window),
	)
	return false
}

// TimeUntilReset returns how long until the oldest retained timestamp ages
// out of the window, floored at zero. Used as the retry-after hint on denial.
func (g *RateGate) TimeUntilReset() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.evict(now)

	if len(g.stamps) == 0 {
		return 0
	}
	reset := g.stamps[0].Add(g.window).Sub(now)
	if reset < 0 {
		return 0
	}
	return reset
}

// WaitCooldown blocks the calling goroutine until the minimum gap since the
// previous upstream call has elapsed. Only the caller is suspended; it
// returns early with the context error on cancellation.
func (g *RateGate) WaitCooldown(ctx context.Context) error {
	return g.cooldown.Wait(ctx)
}

// evict drops window entries older than the window length. Timestamps are
// appended in order, so eviction only ever trims the front.
func (g *RateGate) evict(now time.Time) {
	i := 0
	for i < len(g.stamps) && now.Sub(g.stamps[i]) > g.window {
		i++
	}
	if i > 0 {
		g.stamps = g.stamps[i:]
	}
}
