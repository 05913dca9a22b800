// Package metrics provides the sales-funnel instrumentation and services
// for querying aggregated metrics data from Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FunnelRecorder tracks conversation progress through the sales funnel.
type FunnelRecorder struct {
	conversationsStarted   *prometheus.CounterVec
	conversationsCompleted *prometheus.CounterVec
	demosBooked            *prometheus.CounterVec
	turnDuration           prometheus.Histogram
	dailyLimitThrottled    prometheus.Counter
}

// NewFunnelRecorder creates and registers the funnel metrics on the default
// registry. Create at most one per process.
func NewFunnelRecorder() *FunnelRecorder {
	return &FunnelRecorder{
		conversationsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conversations_started_total",
			Help: "Conversations created, labeled by source.",
		}, []string{"source"}),
		conversationsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "conversations_completed_total",
			Help: "Conversations that received a proposal, labeled by source.",
		}, []string{"source"}),
		demosBooked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "demos_booked_total",
			Help: "Conversations shown the booking link, labeled by source and tier.",
		}, []string{"source", "tier"}),
		turnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "turn_duration_seconds",
			Help:    "Wall time to process one visitor turn.",
			Buckets: prometheus.DefBuckets,
		}),
		dailyLimitThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "daily_limit_throttled_total",
			Help: "Turns processed while over the daily usage budget.",
		}),
	}
}

// ConversationStarted records a new conversation.
func (r *FunnelRecorder) ConversationStarted(source string) {
	r.conversationsStarted.WithLabelValues(source).Inc()
}

// ConversationCompleted records a conversation reaching the proposal.
func (r *FunnelRecorder) ConversationCompleted(source string) {
	r.conversationsCompleted.WithLabelValues(source).Inc()
}

// DemoBooked records a conversation being shown the booking link.
func (r *FunnelRecorder) DemoBooked(source, tier string) {
	r.demosBooked.WithLabelValues(source, tier).Inc()
}

// ObserveTurn records the processing time of one visitor turn.
func (r *FunnelRecorder) ObserveTurn(d time.Duration) {
	r.turnDuration.Observe(d.Seconds())
}

// DailyLimitThrottled records a turn processed over budget.
func (r *FunnelRecorder) DailyLimitThrottled() {
	r.dailyLimitThrottled.Inc()
}
