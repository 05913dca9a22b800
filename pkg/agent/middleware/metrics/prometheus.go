// Package metrics provides Prometheus-based metrics middleware for LLM
// clients.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"salesbot/pkg/agent/llm"
	"salesbot/pkg/agent/llmerrors"
)

// Recorder records Prometheus metrics for LLM requests.
type Recorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRecorder creates a Prometheus-based LLM metrics recorder. Metrics are
// registered on the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, status, and error type",
			},
			[]string{"model", "status", "error_type"},
		),
		tokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"model", "type"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
	}
}

// ObserveRequest records metrics for a completed LLM request.
func (r *Recorder) ObserveRequest(model string, usage llm.Usage, err error, duration time.Duration) {
	status := "success"
	errorType := ""
	if err != nil {
		status = "error"
		errorType = llmerrors.Classify(err).String()
	}

	r.requestsTotal.WithLabelValues(model, status, errorType).Inc()
	if err == nil {
		r.tokensTotal.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
		r.tokensTotal.WithLabelValues(model, "completion").Add(float64(usage.CompletionTokens))
	}
	r.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// Middleware wraps an LLM client with request metrics recording.
func Middleware(recorder *Recorder) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				recorder.ObserveRequest(next.ModelName(), resp.Usage, err, time.Since(start))
				return resp, err
			},
			next.ModelName,
		)
	}
}
