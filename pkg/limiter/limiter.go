// Package limiter tracks daily LLM usage against configured budgets.
//
// Budgets are soft: an over-budget conversation still gets replies, but
// the overage is logged and counted.
package limiter

import (
	"sync"
	"time"

	"salesbot/pkg/config"
	"salesbot/pkg/logx"
)

// DailyLimiter accumulates token and cost usage per UTC day.
type DailyLimiter struct {
	mu         sync.Mutex
	day        string
	tokens     int64
	costUSD    float64
	tokenLimit int64
	costLimit  float64
	logger     *logx.Logger
	now        func() time.Time
}

// NewDailyLimiter creates a limiter from configured budgets. Zero limits
// disable the corresponding check.
func NewDailyLimiter(limits config.LimitsConfig) *DailyLimiter {
	return &DailyLimiter{
		tokenLimit: limits.DailyTokenLimit,
		costLimit:  limits.DailyCostLimit,
		logger:     logx.NewLogger("limiter"),
		now:        time.Now,
	}
}

// Seed primes today's counters from persisted usage, so restarts do not
// reset the budget.
func (l *DailyLimiter) Seed(day string, tokens int64, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if day == l.today() {
		l.day = day
		l.tokens = tokens
		l.costUSD = costUSD
	}
}

// Record adds one completion's usage to today's totals.
func (l *DailyLimiter) Record(tokens int64, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	l.tokens += tokens
	l.costUSD += costUSD
}

// Exceeded reports whether today's usage is over either budget. The first
// over-budget check of each day logs a warning.
func (l *DailyLimiter) Exceeded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	over := (l.tokenLimit > 0 && l.tokens >= l.tokenLimit) ||
		(l.costLimit > 0 && l.costUSD >= l.costLimit)
	if over {
		l.logger.Warn("daily usage budget exceeded: %d tokens, $%.2f", l.tokens, l.costUSD)
	}
	return over
}

// Usage returns today's accumulated totals.
func (l *DailyLimiter) Usage() (tokens int64, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.tokens, l.costUSD
}

// rollover resets counters when the UTC day changes. Caller holds the lock.
func (l *DailyLimiter) rollover() {
	today := l.today()
	if l.day != today {
		l.day = today
		l.tokens = 0
		l.costUSD = 0
	}
}

func (l *DailyLimiter) today() string {
	return l.now().UTC().Format("2006-01-02")
}
