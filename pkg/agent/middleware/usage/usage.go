// Package usage provides middleware that reports per-completion token
// usage to an accounting callback.
package usage

import (
	"context"

	"salesbot/pkg/agent/llm"
	"salesbot/pkg/utils"
)

// Recorder receives the token usage of each successful completion.
type Recorder interface {
	Record(promptTokens, completionTokens int)
}

// Middleware reports usage from successful completions to the recorder.
// Providers that do not report usage get a tokenizer-based estimate.
// Failed completions report nothing.
func Middleware(recorder Recorder, counter *utils.TokenCounter) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(func(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
			resp, err := next.Complete(ctx, in)
			if err == nil && recorder != nil {
				u := resp.Usage
				if u.PromptTokens == 0 && u.CompletionTokens == 0 {
					u = estimate(counter, in, resp)
				}
				recorder.Record(u.PromptTokens, u.CompletionTokens)
			}
			return resp, err
		}, next.ModelName)
	}
}

func estimate(counter *utils.TokenCounter, in llm.CompletionRequest, resp llm.CompletionResponse) llm.Usage {
	var prompt int
	for _, msg := range in.Messages {
		prompt += counter.CountTokens(msg.Content)
	}
	return llm.Usage{
		PromptTokens:     prompt,
		CompletionTokens: counter.CountTokens(resp.Content),
	}
}
