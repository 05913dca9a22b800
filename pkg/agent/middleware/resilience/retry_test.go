package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesbot/pkg/agent/llm"
	"salesbot/pkg/agent/llmerrors"
)

func fastPolicy(attempts int) *Policy {
	return &Policy{MaxAttempts: attempts, BaseWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}

func TestRetriesTransientErrors(t *testing.T) {
	mock := llm.NewMockClient(
		[]llm.CompletionResponse{{Content: "ok"}},
		[]error{
			llmerrors.NewError(llmerrors.ErrorTypeTransient, "blip"),
			llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down"),
			nil,
		},
	)
	client := Middleware(fastPolicy(3))(mock)

	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, mock.CallCount())
}

func TestDoesNotRetryAuthErrors(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key"),
	})
	client := Middleware(fastPolicy(5))(mock)

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
}

func TestExhaustsAttempts(t *testing.T) {
	transient := llmerrors.NewError(llmerrors.ErrorTypeTransient, "down")
	mock := llm.NewMockClient(nil, []error{transient, transient, transient, transient})
	client := Middleware(fastPolicy(3))(mock)

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.Error(t, err)
	assert.Equal(t, 3, mock.CallCount())
	assert.Equal(t, llmerrors.ErrorTypeTransient, llmerrors.Classify(err))
}

func TestStopsOnCancelledContext(t *testing.T) {
	transient := llmerrors.NewError(llmerrors.ErrorTypeTransient, "down")
	mock := llm.NewMockClient(nil, []error{transient, transient, transient})
	client := Middleware(&Policy{MaxAttempts: 3, BaseWait: time.Minute})(mock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, llm.NewCompletionRequest(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.CallCount())
}
