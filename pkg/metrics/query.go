package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// FunnelSnapshot is an aggregated view of the sales funnel, as scraped
// into Prometheus.
type FunnelSnapshot struct {
	ConversationsStarted   int64   `json:"conversations_started"`
	ConversationsCompleted int64   `json:"conversations_completed"`
	DemosBooked            int64   `json:"demos_booked"`
	PromptTokens           int64   `json:"prompt_tokens"`
	CompletionTokens       int64   `json:"completion_tokens"`
	ConversionRate         float64 `json:"conversion_rate"`
}

// QueryService queries aggregated metrics from a Prometheus server. The
// worker uses it for periodic funnel reporting.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetFunnelSnapshot retrieves the current funnel totals and token usage.
func (q *QueryService) GetFunnelSnapshot(ctx context.Context) (*FunnelSnapshot, error) {
	snap := &FunnelSnapshot{}

	queries := []struct {
		expr string
		dst  *int64
	}{
		{`sum(conversations_started_total)`, &snap.ConversationsStarted},
		{`sum(conversations_completed_total)`, &snap.ConversationsCompleted},
		{`sum(demos_booked_total)`, &snap.DemosBooked},
		{`sum(llm_tokens_total{type="prompt"})`, &snap.PromptTokens},
		{`sum(llm_tokens_total{type="completion"})`, &snap.CompletionTokens},
	}

	for _, query := range queries {
		value, err := q.queryScalar(ctx, query.expr)
		if err != nil {
			return nil, err
		}
		*query.dst = value
	}

	if snap.ConversationsStarted > 0 {
		snap.ConversionRate = float64(snap.DemosBooked) / float64(snap.ConversationsStarted)
	}
	return snap, nil
}

// GetDemosBookedByTier breaks down booked demos by partnership tier.
func (q *QueryService) GetDemosBookedByTier(ctx context.Context) (map[string]int64, error) {
	result, _, err := q.queryAPI.Query(ctx, `sum by (tier) (demos_booked_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query demos by tier: %w", err)
	}

	byTier := make(map[string]int64)
	if vector, ok := result.(model.Vector); ok {
		for _, sample := range vector {
			if tier, ok := sample.Metric["tier"]; ok {
				byTier[string(tier)] = int64(sample.Value)
			}
		}
	}
	return byTier, nil
}

// queryScalar runs an instant query expected to yield a single sample.
// Missing series read as zero.
func (q *QueryService) queryScalar(ctx context.Context, expr string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, expr, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", expr, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}
