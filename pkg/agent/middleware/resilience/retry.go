// Package resilience provides retry middleware for LLM clients.
//
// The discovery engine itself never retries: a failed completion degrades
// into fallback content. Retrying transient provider errors is the
// collaborator's job and lives here, outside the engine boundary.
package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"salesbot/pkg/agent/llm"
	"salesbot/pkg/agent/llmerrors"
)

// Policy controls retry behavior.
type Policy struct {
	MaxAttempts int           // Total attempts including the first
	BaseWait    time.Duration // Initial backoff delay
	MaxWait     time.Duration // Cap on backoff delay
}

// DefaultPolicy returns a conservative retry policy.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		BaseWait:    time.Second,
		MaxWait:     15 * time.Second,
	}
}

// delay computes the exponential backoff delay with jitter for an attempt
// (attempt numbering starts at 1; delay applies before attempts 2..N).
func (p *Policy) delay(attempt int) time.Duration {
	d := p.BaseWait
	for i := 2; i < attempt; i++ {
		d *= 2
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	// Up to 25% jitter to avoid thundering herd.
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1)) //nolint:gosec // Non-cryptographic jitter
	return d + jitter
}

// Middleware wraps an LLM client with classified retry logic. Only errors
// classified as retryable (rate limit, transient, empty response) are
// retried; auth and bad-prompt errors fail immediately.
func Middleware(policy *Policy) llm.Middleware {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				var lastErr error

				for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
					if attempt > 1 {
						select {
						case <-ctx.Done():
							return llm.CompletionResponse{}, fmt.Errorf("retry cancelled: %w", ctx.Err())
						case <-time.After(policy.delay(attempt)):
						}
					}

					resp, err := next.Complete(ctx, req)
					if err == nil {
						return resp, nil
					}
					lastErr = err

					if !llmerrors.Classify(err).Retryable() {
						break
					}
				}

				return llm.CompletionResponse{}, lastErr
			},
			next.ModelName,
		)
	}
}
