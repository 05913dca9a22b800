package chat

import (
	"time"

	"salesbot/pkg/config"
	"salesbot/pkg/limiter"
	"salesbot/pkg/logx"
)

// UsageAccountant routes per-completion token usage into the daily limiter
// and the persisted usage table. It implements the callback expected by
// the usage middleware.
type UsageAccountant struct {
	store   Store
	limiter *limiter.DailyLimiter
	model   string
	logger  *logx.Logger
}

// NewUsageAccountant builds an accountant for the configured model.
func NewUsageAccountant(store Store, lim *limiter.DailyLimiter, model string) *UsageAccountant {
	return &UsageAccountant{
		store:   store,
		limiter: lim,
		model:   model,
		logger:  logx.NewLogger("usage"),
	}
}

// Record accounts one completion round trip.
func (a *UsageAccountant) Record(promptTokens, completionTokens int) {
	cost := config.EstimateCost(a.model, promptTokens, completionTokens)
	if a.limiter != nil {
		a.limiter.Record(int64(promptTokens+completionTokens), cost)
	}
	day := time.Now().UTC().Format("2006-01-02")
	if err := a.store.RecordUsage(day, a.model, int64(promptTokens), int64(completionTokens), cost); err != nil {
		a.logger.Warn("failed to persist usage: %v", err)
	}
}
